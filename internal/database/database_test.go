package database_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ms-events/internal/config"
	"ms-events/internal/database"
	"ms-events/internal/logger"
	"ms-events/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:         config.DriverSQLite,
		SQLiteDSN:      ":memory:",
		ConnectRetries: 1,
	}
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	log := logger.NewConsoleLogger(io.Discard, "ERROR")

	db, err := database.Open(ctx, sqliteConfig(), log)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.Migrate(ctx, db, sqliteConfig(), log))
	// running twice is harmless
	require.NoError(t, database.EnsureSchema(ctx, db))

	event := &models.Event{
		ID:        "evt-1",
		Title:     "Go Meetup",
		DateTime:  time.Now().Add(time.Hour).UTC(),
		Location:  "Berlin",
		Capacity:  10,
		CreatedAt: time.Now().UTC(),
	}
	_, err = db.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	duplicate := *event
	duplicate.ID = "evt-2"
	_, err = db.NewInsert().Model(&duplicate).Exec(ctx)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	log := logger.NewConsoleLogger(io.Discard, "ERROR")

	_, err := database.Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, log)
	assert.Error(t, err)

	_, err = database.Open(context.Background(), config.DatabaseConfig{Driver: config.DriverPostgres}, log)
	assert.EqualError(t, err, "POSTGRES_DSN not set")

	_, err = database.Open(context.Background(), config.DatabaseConfig{Driver: config.DriverMySQL}, log)
	assert.EqualError(t, err, "MYSQL_DSN not set")

	_, err = database.Open(context.Background(), config.DatabaseConfig{Driver: config.DriverMySQL, MySQLDSN: "not a dsn"}, log)
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("connection reset")))
	assert.True(t, database.IsUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, database.IsUniqueViolation(&mysql.MySQLError{Number: 1452}))
	assert.True(t, database.IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
}
