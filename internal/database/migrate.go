package database

import (
	"context"
	"database/sql"
	"fmt"

	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/logger"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
)

// Migrate brings the schema up to date: versioned migrations on
// PostgreSQL, model-driven tables on MySQL and SQLite.
func Migrate(ctx context.Context, db *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if cfg.Driver != config.DriverPostgres {
		log.Info("MIGRATION", fmt.Sprintf("Creating %s schema from models", cfg.Driver))
		return EnsureSchema(ctx, db)
	}

	migDB, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	runner := migrations.NewRunner(migDB, log)
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATION", fmt.Sprintf("Failed to close migrator: %v", err))
		}
	}()

	return runner.MigrateUp()
}
