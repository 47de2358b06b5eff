package repository

import (
	"context"
	"time"

	"github.com/yourusername/kyotei-predictor/internal/models"
)

// PredictionRepository defines the interface for prediction data access
type PredictionRepository interface {
	// Insert stores p and returns its id. A second prediction for the same
	// race key fails with models.ErrDuplicateKey and leaves the first intact.
	Insert(ctx context.Context, p *models.Prediction) (int64, error)
	GetByKey(ctx context.Context, key models.RaceKey) (*models.Prediction, error)
	GetByDate(ctx context.Context, date string) ([]*models.Prediction, error)
	// GetPending returns predictions without a result; an empty date means every date.
	GetPending(ctx context.Context, date string) ([]*models.Prediction, error)
	Count(ctx context.Context) (int, error)
}

// ResultRepository defines the interface for reconciled result data access
type ResultRepository interface {
	Insert(ctx context.Context, rec *models.AccuracyRecord) (int64, error)
	// GetByKey returns the record joined with its prediction.
	GetByKey(ctx context.Context, key models.RaceKey) (*models.AccuracyRecord, error)
	// GetByTimeRange returns records whose result timestamp lies in [since, until].
	GetByTimeRange(ctx context.Context, since, until time.Time) ([]*models.AccuracyRecord, error)
	Count(ctx context.Context) (int, error)
}
