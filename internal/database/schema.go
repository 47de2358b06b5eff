package database

// sqliteSchema stores timestamps as fixed-width UTC text (see TimestampLayout)
// and lanes as JSON arrays.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		venue_id INTEGER NOT NULL,
		race_number INTEGER NOT NULL,
		date_str TEXT NOT NULL,
		predicted_lanes TEXT NOT NULL,
		confidence REAL NOT NULL,
		timestamp TEXT NOT NULL,
		UNIQUE (venue_id, race_number, date_str)
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		venue_id INTEGER NOT NULL,
		race_number INTEGER NOT NULL,
		date_str TEXT NOT NULL,
		actual_lanes TEXT NOT NULL,
		is_win_hit INTEGER NOT NULL,
		is_place_hit INTEGER NOT NULL,
		is_trifecta_hit INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		UNIQUE (venue_id, race_number, date_str)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_date ON predictions (date_str)`,
	`CREATE INDEX IF NOT EXISTS idx_results_timestamp ON results (timestamp)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS predictions (
		id BIGSERIAL PRIMARY KEY,
		venue_id INTEGER NOT NULL,
		race_number INTEGER NOT NULL,
		date_str TEXT NOT NULL,
		predicted_lanes JSONB NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		UNIQUE (venue_id, race_number, date_str)
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		venue_id INTEGER NOT NULL,
		race_number INTEGER NOT NULL,
		date_str TEXT NOT NULL,
		actual_lanes JSONB NOT NULL,
		is_win_hit BOOLEAN NOT NULL,
		is_place_hit BOOLEAN NOT NULL,
		is_trifecta_hit BOOLEAN NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		UNIQUE (venue_id, race_number, date_str)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_date ON predictions (date_str)`,
	`CREATE INDEX IF NOT EXISTS idx_results_timestamp ON results (timestamp)`,
}
