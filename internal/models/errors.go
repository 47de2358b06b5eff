package models

import "errors"

// Custom errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrInvalidKey   = errors.New("invalid race key")
	ErrInvalidOrder = errors.New("invalid finishing order")

	ErrInvalidPrediction = errors.New("invalid prediction")
)
