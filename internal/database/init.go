package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kyotei-predictor/internal/config"
)

// DB is the handle shared by the repositories and the health checker
type DB interface {
	Driver() string
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Initialize opens the configured database and ensures the schema exists
func Initialize(ctx context.Context, cfg *config.DatabaseConfig, log logrus.FieldLogger) (DB, error) {
	var (
		db  DB
		err error
	)

	switch cfg.Driver {
	case config.DriverSQLite, "":
		db, err = NewSQLiteDB(ctx, cfg.Path)
	case config.DriverPostgres:
		db, err = NewPostgresDB(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("schema setup failed and close failed: close=%v, schema=%w", closeErr, err)
		}
		return nil, err
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"driver": db.Driver(),
			"path":   cfg.Path,
		}).Info("Database ready")
	}
	return db, nil
}
