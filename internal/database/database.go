package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-events/internal/config"
	"ms-events/internal/logger"
	"ms-events/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var retryDelay = 2 * time.Second

// Open connects to the configured store, retrying the ping a bounded number
// of times, and wraps the connection in bun.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := openSQL(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == config.DriverSQLite {
		// one writer keeps SQLite from reporting "database is locked"
		sqldb.SetMaxOpenConns(1)
	} else {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", cfg.Driver, i+1, attempts))
		if err = sqldb.PingContext(ctx); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				sqldb.Close()
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, attempts, err)
	}

	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", cfg.Driver))

	switch cfg.Driver {
	case config.DriverSQLite:
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case config.DriverMySQL:
		return bun.NewDB(sqldb, mysqldialect.New()), nil
	default:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
}

func openSQL(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("POSTGRES_DSN not set")
		}
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN))), nil
	case config.DriverMySQL:
		if cfg.MySQLDSN == "" {
			return nil, errors.New("MYSQL_DSN not set")
		}
		dsn, err := mysqlDSN(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return sql.Open("mysql", dsn)
	case config.DriverSQLite:
		return sql.Open(sqliteshim.ShimName, cfg.SQLiteDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// mysqlDSN forces time parsing in UTC so DATETIME columns scan into
// time.Time.
func mysqlDSN(raw string) (string, error) {
	parsed, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("invalid MYSQL_DSN: %w", err)
	}
	parsed.ParseTime = true
	parsed.Loc = time.UTC
	return parsed.FormatDSN(), nil
}

// EnsureSchema creates the tables from the bun models. PostgreSQL
// deployments use the versioned migrations instead.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*models.Event)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*models.User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	_, err := db.NewCreateTable().
		Model((*models.EventRegistration)(nil)).
		IfNotExists().
		ForeignKey("(?) REFERENCES ? (?) ON DELETE CASCADE", bun.Ident("event_id"), bun.Ident("events"), bun.Ident("id")).
		ForeignKey("(?) REFERENCES ? (?) ON DELETE CASCADE", bun.Ident("user_id"), bun.Ident("users"), bun.Ident("id")).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create event_registrations table: %w", err)
	}
	index := db.NewCreateIndex().
		Model((*models.Event)(nil)).
		Index("events_date_time_location_idx").
		Column("date_time", "location")
	// MySQL has no CREATE INDEX IF NOT EXISTS
	if db.Dialect().Name() != dialect.MySQL {
		index = index.IfNotExists()
	}
	if _, err := index.Exec(ctx); err != nil && !isDuplicateIndex(err) {
		return fmt.Errorf("create events index: %w", err)
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}

// IsUniqueViolation reports whether err came from a unique or primary key
// constraint on any supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
