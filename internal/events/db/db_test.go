package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"ms-events/internal/database"
	"ms-events/internal/events/db"
	"ms-events/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := database.EnsureSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })

	return &db.DB{Bun: bunDB}, bunDB
}

func newEvent(title string, at time.Time, location string, capacity int) *models.Event {
	return &models.Event{
		ID:        uuid.NewString(),
		Title:     title,
		DateTime:  at.UTC(),
		Location:  location,
		Capacity:  capacity,
		CreatedAt: time.Now().UTC(),
	}
}

func newUser(email string) *models.User {
	return &models.User{
		ID:        uuid.NewString(),
		Name:      "User " + email,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGetEvent(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	event := newEvent("GopherCon", time.Now().Add(48*time.Hour), "Denver", 100)
	require.NoError(t, store.CreateEvent(ctx, event))

	got, err := store.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "GopherCon", got.Title)
	assert.Equal(t, 100, got.Capacity)
	assert.Equal(t, 0, got.RegisteredCount)
	assert.WithinDuration(t, event.DateTime, got.DateTime, time.Millisecond)

	exists, err := store.EventTitleExists(ctx, "GopherCon")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.GetEventByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateEventDuplicateTitle(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEvent(ctx, newEvent("Dup", time.Now().Add(time.Hour), "A", 10)))
	err := store.CreateEvent(ctx, newEvent("Dup", time.Now().Add(time.Hour), "B", 10))
	assert.ErrorIs(t, err, models.ErrDuplicateTitle)

	events, err := store.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestListUpcomingEventsOrdering(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	soon := now.Add(24 * time.Hour)

	require.NoError(t, store.CreateEvent(ctx, newEvent("past", now.Add(-time.Hour), "Aachen", 5)))
	require.NoError(t, store.CreateEvent(ctx, newEvent("starting-now", now, "Aachen", 5)))
	require.NoError(t, store.CreateEvent(ctx, newEvent("later", soon.Add(time.Hour), "Aachen", 5)))
	require.NoError(t, store.CreateEvent(ctx, newEvent("soon-z", soon, "Zurich", 5)))
	require.NoError(t, store.CreateEvent(ctx, newEvent("soon-b", soon, "Bern", 5)))

	events, err := store.ListUpcomingEvents(ctx, now)
	require.NoError(t, err)

	titles := make([]string, len(events))
	for i, e := range events {
		titles[i] = e.Title
	}
	assert.Equal(t, []string{"soon-b", "soon-z", "later"}, titles)
}

func TestGetOrCreateUser(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	first, created, err := store.GetOrCreateUser(ctx, newUser("ada@example.com"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.GetOrCreateUser(ctx, newUser("ada@example.com"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAddRegistrationEnforcesCapacityAndUniqueness(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	event := newEvent("Small", time.Now().Add(time.Hour), "Oslo", 2)
	require.NoError(t, store.CreateEvent(ctx, event))

	users := make([]*models.User, 3)
	for i := range users {
		u, _, err := store.GetOrCreateUser(ctx, newUser(fmt.Sprintf("u%d@example.com", i)))
		require.NoError(t, err)
		users[i] = u
	}

	require.NoError(t, store.AddRegistration(ctx, event.ID, users[0].ID, time.Now()))
	assert.ErrorIs(t, store.AddRegistration(ctx, event.ID, users[0].ID, time.Now()), models.ErrDuplicateLink)
	require.NoError(t, store.AddRegistration(ctx, event.ID, users[1].ID, time.Now()))
	assert.ErrorIs(t, store.AddRegistration(ctx, event.ID, users[2].ID, time.Now()), models.ErrCapacityReached)
	assert.ErrorIs(t, store.AddRegistration(ctx, "missing", users[2].ID, time.Now()), models.ErrNotFound)

	count, err := store.CountRegistrations(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := store.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RegisteredCount, "rolled back duplicate must not leak a seat")
}

func TestRemoveRegistrationReleasesSeat(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	event := newEvent("One seat", time.Now().Add(time.Hour), "Rome", 1)
	require.NoError(t, store.CreateEvent(ctx, event))
	a, _, err := store.GetOrCreateUser(ctx, newUser("a@example.com"))
	require.NoError(t, err)
	b, _, err := store.GetOrCreateUser(ctx, newUser("b@example.com"))
	require.NoError(t, err)

	require.NoError(t, store.AddRegistration(ctx, event.ID, a.ID, time.Now()))
	assert.ErrorIs(t, store.RemoveRegistration(ctx, event.ID, b.ID), models.ErrRegistrationNotFound)
	require.NoError(t, store.RemoveRegistration(ctx, event.ID, a.ID))

	registered, err := store.IsRegistered(ctx, event.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, registered)

	require.NoError(t, store.AddRegistration(ctx, event.ID, b.ID, time.Now()))
}

func TestListEventsWithRegistrants(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	empty, err := store.ListEventsWithRegistrants(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)

	full := newEvent("Full", time.Now().Add(time.Hour), "Lyon", 5)
	lonely := newEvent("Lonely", time.Now().Add(time.Hour), "Nice", 5)
	require.NoError(t, store.CreateEvent(ctx, full))
	require.NoError(t, store.CreateEvent(ctx, lonely))

	u, _, err := store.GetOrCreateUser(ctx, newUser("grace@example.com"))
	require.NoError(t, err)
	require.NoError(t, store.AddRegistration(ctx, full.ID, u.ID, time.Now()))

	events, err := store.ListEventsWithRegistrants(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byTitle := map[string]models.EventWithRegistrants{}
	for _, e := range events {
		byTitle[e.Title] = e
	}
	require.Len(t, byTitle["Full"].Registrations, 1)
	assert.Equal(t, models.Registrant{ID: u.ID, Name: u.Name, Email: "grace@example.com"}, byTitle["Full"].Registrations[0])
	assert.NotNil(t, byTitle["Lonely"].Registrations)
	assert.Empty(t, byTitle["Lonely"].Registrations)
}
