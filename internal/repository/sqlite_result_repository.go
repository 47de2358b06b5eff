package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/models"
)

const sqliteRecordSelect = `
	SELECT r.id, p.id, r.venue_id, r.race_number, r.date_str,
		p.predicted_lanes, r.actual_lanes, p.confidence,
		r.is_win_hit, r.is_place_hit, r.is_trifecta_hit, r.timestamp
	FROM results r
	JOIN predictions p
		ON p.venue_id = r.venue_id AND p.race_number = r.race_number AND p.date_str = r.date_str`

// SQLiteResultRepository implements ResultRepository for SQLite
type SQLiteResultRepository struct {
	db *database.SQLiteDB
}

// NewSQLiteResultRepository creates a new result repository
func NewSQLiteResultRepository(db *database.SQLiteDB) ResultRepository {
	return &SQLiteResultRepository{db: db}
}

// Insert stores a reconciled result
func (r *SQLiteResultRepository) Insert(ctx context.Context, rec *models.AccuracyRecord) (int64, error) {
	lanes, err := encodeLanes(rec.ActualLanes)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO results (venue_id, race_number, date_str, actual_lanes,
			is_win_hit, is_place_hit, is_trifecta_hit, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.SQL().ExecContext(ctx, query,
		rec.Key.VenueID, rec.Key.RaceNumber, rec.Key.Date, lanes,
		boolToInt(rec.WinHit), boolToInt(rec.PlaceHit), boolToInt(rec.TrifectaHit),
		database.FormatTimestamp(rec.RecordedAt),
	)
	if err != nil {
		if database.IsSQLiteUniqueViolation(err) {
			return 0, fmt.Errorf("%w: result for %s", models.ErrDuplicateKey, rec.Key)
		}
		return 0, fmt.Errorf("failed to insert result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read result id: %w", err)
	}
	return id, nil
}

// GetByKey retrieves the accuracy record for a race
func (r *SQLiteResultRepository) GetByKey(ctx context.Context, key models.RaceKey) (*models.AccuracyRecord, error) {
	query := sqliteRecordSelect + `
		WHERE r.venue_id = ? AND r.race_number = ? AND r.date_str = ?`

	rec, err := scanSQLiteRecord(r.db.SQL().QueryRowContext(ctx, query, key.VenueID, key.RaceNumber, key.Date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: result for %s", models.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return rec, nil
}

// GetByTimeRange retrieves records reconciled within [since, until]
func (r *SQLiteResultRepository) GetByTimeRange(ctx context.Context, since, until time.Time) ([]*models.AccuracyRecord, error) {
	query := sqliteRecordSelect + `
		WHERE r.timestamp >= ? AND r.timestamp <= ?
		ORDER BY r.timestamp, r.id`

	rows, err := r.db.SQL().QueryContext(ctx, query, database.FormatTimestamp(since), database.FormatTimestamp(until))
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var records []*models.AccuracyRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
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
func (r *SQLiteResultRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

func scanSQLiteRecord(row rowScanner) (*models.AccuracyRecord, error) {
	var (
		rec                   models.AccuracyRecord
		predicted, actual, ts string
		win, place, trifecta  int
	)
	err := row.Scan(
		&rec.ID, &rec.PredictionID, &rec.Key.VenueID, &rec.Key.RaceNumber, &rec.Key.Date,
		&predicted, &actual, &rec.Confidence,
		&win, &place, &trifecta, &ts,
	)
	if err != nil {
		return nil, err
	}

	if rec.PredictedLanes, err = decodeLanes([]byte(predicted)); err != nil {
		return nil, err
	}
	if rec.ActualLanes, err = decodeLanes([]byte(actual)); err != nil {
		return nil, err
	}
	if rec.RecordedAt, err = database.ParseTimestamp(ts); err != nil {
		return nil, fmt.Errorf("bad result timestamp %q: %w", ts, err)
	}
	rec.WinHit, rec.PlaceHit, rec.TrifectaHit = win != 0, place != 0, trifecta != 0
	return &rec, nil
}
