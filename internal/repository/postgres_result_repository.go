package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/models"
)

const postgresRecordSelect = `
	SELECT r.id, p.id, r.venue_id, r.race_number, r.date_str,
		p.predicted_lanes, r.actual_lanes, p.confidence,
		r.is_win_hit, r.is_place_hit, r.is_trifecta_hit, r.timestamp
	FROM results r
	JOIN predictions p
		ON p.venue_id = r.venue_id AND p.race_number = r.race_number AND p.date_str = r.date_str`

// PostgresResultRepository implements ResultRepository for PostgreSQL
type PostgresResultRepository struct {
	db *database.PostgresDB
}

// NewPostgresResultRepository creates a new result repository
func NewPostgresResultRepository(db *database.PostgresDB) ResultRepository {
	return &PostgresResultRepository{db: db}
}

// Insert stores a reconciled result
func (r *PostgresResultRepository) Insert(ctx context.Context, rec *models.AccuracyRecord) (int64, error) {
	lanes, err := encodeLanes(rec.ActualLanes)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO results (venue_id, race_number, date_str, actual_lanes,
			is_win_hit, is_place_hit, is_trifecta_hit, timestamp)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err = r.db.GetPool().QueryRow(ctx, query,
		rec.Key.VenueID, rec.Key.RaceNumber, rec.Key.Date, lanes,
		rec.WinHit, rec.PlaceHit, rec.TrifectaHit, rec.RecordedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if database.IsPostgresUniqueViolation(err) {
			return 0, fmt.Errorf("%w: result for %s", models.ErrDuplicateKey, rec.Key)
		}
		return 0, fmt.Errorf("failed to insert result: %w", err)
	}
	return id, nil
}

// GetByKey retrieves the accuracy record for a race
func (r *PostgresResultRepository) GetByKey(ctx context.Context, key models.RaceKey) (*models.AccuracyRecord, error) {
	query := postgresRecordSelect + `
		WHERE r.venue_id = $1 AND r.race_number = $2 AND r.date_str = $3`

	rec, err := scanPostgresRecord(r.db.GetPool().QueryRow(ctx, query, key.VenueID, key.RaceNumber, key.Date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: result for %s", models.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return rec, nil
}

// GetByTimeRange retrieves records reconciled within [since, until]
func (r *PostgresResultRepository) GetByTimeRange(ctx context.Context, since, until time.Time) ([]*models.AccuracyRecord, error) {
	query := postgresRecordSelect + `
		WHERE r.timestamp >= $1 AND r.timestamp <= $2
		ORDER BY r.timestamp, r.id`

	rows, err := r.db.GetPool().Query(ctx, query, since.UTC(), until.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var records []*models.AccuracyRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return records, nil
}

// Count returns the number of reconciled results
func (r *PostgresResultRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

func scanPostgresRecord(row pgx.Row) (*models.AccuracyRecord, error) {
	var (
		rec               models.AccuracyRecord
		predicted, actual []byte
	)
	err := row.Scan(
		&rec.ID, &rec.PredictionID, &rec.Key.VenueID, &rec.Key.RaceNumber, &rec.Key.Date,
		&predicted, &actual, &rec.Confidence,
		&rec.WinHit, &rec.PlaceHit, &rec.TrifectaHit, &rec.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.PredictedLanes, err = decodeLanes(predicted); err != nil {
		return nil, err
	}
	if rec.ActualLanes, err = decodeLanes(actual); err != nil {
		return nil, err
	}
	rec.RecordedAt = rec.RecordedAt.UTC()
	return &rec, nil
}
