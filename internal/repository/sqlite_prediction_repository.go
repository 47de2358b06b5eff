package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/models"
)

const sqlitePredictionColumns = `p.id, p.venue_id, p.race_number, p.date_str, p.predicted_lanes, p.confidence, p.timestamp`

// SQLitePredictionRepository implements PredictionRepository for SQLite
type SQLitePredictionRepository struct {
	db *database.SQLiteDB
}

// NewSQLitePredictionRepository creates a new prediction repository
func NewSQLitePredictionRepository(db *database.SQLiteDB) PredictionRepository {
	return &SQLitePredictionRepository{db: db}
}

// Insert stores a prediction
func (r *SQLitePredictionRepository) Insert(ctx context.Context, p *models.Prediction) (int64, error) {
	lanes, err := encodeLanes(p.RankedLanes)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO predictions (venue_id, race_number, date_str, predicted_lanes, confidence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.SQL().ExecContext(ctx, query,
		p.Key.VenueID, p.Key.RaceNumber, p.Key.Date, lanes, p.Confidence, database.FormatTimestamp(p.CreatedAt),
	)
	if err != nil {
		if database.IsSQLiteUniqueViolation(err) {
			return 0, fmt.Errorf("%w: prediction for %s", models.ErrDuplicateKey, p.Key)
		}
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read prediction id: %w", err)
	}
	return id, nil
}

// GetByKey retrieves the prediction for a race
func (r *SQLitePredictionRepository) GetByKey(ctx context.Context, key models.RaceKey) (*models.Prediction, error) {
	query := `SELECT ` + sqlitePredictionColumns + ` FROM predictions p
		WHERE p.venue_id = ? AND p.race_number = ? AND p.date_str = ?`

	p, err := scanSQLitePrediction(r.db.SQL().QueryRowContext(ctx, query, key.VenueID, key.RaceNumber, key.Date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: prediction for %s", models.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetByDate retrieves every prediction for a date
func (r *SQLitePredictionRepository) GetByDate(ctx context.Context, date string) ([]*models.Prediction, error) {
	query := `SELECT ` + sqlitePredictionColumns + ` FROM predictions p
		WHERE p.date_str = ?
		ORDER BY p.venue_id, p.race_number`
	return r.query(ctx, query, date)
}

// GetPending retrieves predictions that have no result yet
func (r *SQLitePredictionRepository) GetPending(ctx context.Context, date string) ([]*models.Prediction, error) {
	query := `SELECT ` + sqlitePredictionColumns + ` FROM predictions p
		LEFT JOIN results r
			ON r.venue_id = p.venue_id AND r.race_number = p.race_number AND r.date_str = p.date_str
		WHERE r.id IS NULL AND (? = '' OR p.date_str = ?)
		ORDER BY p.date_str, p.venue_id, p.race_number`
	return r.query(ctx, query, date, date)
}

// Count returns the number of stored predictions
func (r *SQLitePredictionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}

func (r *SQLitePredictionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Prediction, error) {
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		p, err := scanSQLitePrediction(rows)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLitePrediction(row rowScanner) (*models.Prediction, error) {
	var (
		p     models.Prediction
		lanes string
		ts    string
	)
	if err := row.Scan(&p.ID, &p.Key.VenueID, &p.Key.RaceNumber, &p.Key.Date, &lanes, &p.Confidence, &ts); err != nil {
		return nil, err
	}

	var err error
	if p.RankedLanes, err = decodeLanes([]byte(lanes)); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = database.ParseTimestamp(ts); err != nil {
		return nil, fmt.Errorf("bad prediction timestamp %q: %w", ts, err)
	}
	return &p, nil
}
