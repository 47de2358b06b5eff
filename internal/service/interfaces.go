package service

import (
	"context"
	"time"

	"github.com/yourusername/kyotei-predictor/internal/datasource"
	"github.com/yourusername/kyotei-predictor/internal/models"
)

// ProgramFetcher is the part of datasource.Fetcher the pipeline uses
type ProgramFetcher interface {
	FetchProgram(ctx context.Context, venueID, raceNumber int, date string) ([]models.Entry, error)
	FetchDay(ctx context.Context, date string) ([]datasource.RaceProgram, error)
	FetchResults(ctx context.Context, date string) ([]models.Result, error)
	Now() time.Time
}

// Scorer ranks a race roster
type Scorer interface {
	ScoreRace(entries []models.Entry) (*models.Prediction, error)
}

// AccuracyStore is the part of accuracy.Store the pipeline uses
type AccuracyStore interface {
	RecordPrediction(ctx context.Context, p *models.Prediction) (int64, error)
	RecordResult(ctx context.Context, venueID, raceNumber int, date string, actualOrder []int) (*models.AccuracyRecord, error)
	GetPrediction(ctx context.Context, key models.RaceKey) (*models.Prediction, error)
	Pending(ctx context.Context, date string) ([]*models.Prediction, error)
}
