package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/models"
)

const postgresPredictionColumns = `p.id, p.venue_id, p.race_number, p.date_str, p.predicted_lanes, p.confidence, p.timestamp`

// PostgresPredictionRepository implements PredictionRepository for PostgreSQL
type PostgresPredictionRepository struct {
	db *database.PostgresDB
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db *database.PostgresDB) PredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

// Insert stores a prediction
func (r *PostgresPredictionRepository) Insert(ctx context.Context, p *models.Prediction) (int64, error) {
	lanes, err := encodeLanes(p.RankedLanes)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO predictions (venue_id, race_number, date_str, predicted_lanes, confidence, timestamp)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		RETURNING id
	`
	var id int64
	err = r.db.GetPool().QueryRow(ctx, query,
		p.Key.VenueID, p.Key.RaceNumber, p.Key.Date, lanes, p.Confidence, p.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if database.IsPostgresUniqueViolation(err) {
			return 0, fmt.Errorf("%w: prediction for %s", models.ErrDuplicateKey, p.Key)
		}
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}
	return id, nil
}

// GetByKey retrieves the prediction for a race
func (r *PostgresPredictionRepository) GetByKey(ctx context.Context, key models.RaceKey) (*models.Prediction, error) {
	query := `SELECT ` + postgresPredictionColumns + ` FROM predictions p
		WHERE p.venue_id = $1 AND p.race_number = $2 AND p.date_str = $3`

	p, err := scanPostgresPrediction(r.db.GetPool().QueryRow(ctx, query, key.VenueID, key.RaceNumber, key.Date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: prediction for %s", models.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetByDate retrieves every prediction for a date
func (r *PostgresPredictionRepository) GetByDate(ctx context.Context, date string) ([]*models.Prediction, error) {
	query := `SELECT ` + postgresPredictionColumns + ` FROM predictions p
		WHERE p.date_str = $1
		ORDER BY p.venue_id, p.race_number`
	return r.query(ctx, query, date)
}

// GetPending retrieves predictions that have no result yet
func (r *PostgresPredictionRepository) GetPending(ctx context.Context, date string) ([]*models.Prediction, error) {
	query := `SELECT ` + postgresPredictionColumns + ` FROM predictions p
		LEFT JOIN results r
			ON r.venue_id = p.venue_id AND r.race_number = p.race_number AND r.date_str = p.date_str
		WHERE r.id IS NULL AND ($1 = '' OR p.date_str = $1)
		ORDER BY p.date_str, p.venue_id, p.race_number`
	return r.query(ctx, query, date)
}

// Count returns the number of stored predictions
func (r *PostgresPredictionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}

func (r *PostgresPredictionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Prediction, error) {
	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		p, err := scanPostgresPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}
	return predictions, nil
}

func scanPostgresPrediction(row pgx.Row) (*models.Prediction, error) {
	var (
		p     models.Prediction
		lanes []byte
	)
	if err := row.Scan(&p.ID, &p.Key.VenueID, &p.Key.RaceNumber, &p.Key.Date, &lanes, &p.Confidence, &p.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.RankedLanes, err = decodeLanes(lanes); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
