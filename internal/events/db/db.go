package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-events/internal/database"
	"ms-events/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- EVENTS ----------------

// CreateEvent → insert a new event; a taken title is ErrDuplicateTitle
func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return models.ErrDuplicateTitle
	}
	return err
}

// GetEventByID → fetch one event, ErrNotFound when missing
func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// EventTitleExists → true when an event already uses title
func (d *DB) EventTitleExists(ctx context.Context, title string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("title = ?", title).
		Exists(ctx)
}

// ListEvents → every event, oldest first
func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	return events, err
}

// ListUpcomingEvents → events strictly after now, by date then location
func (d *DB) ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("date_time > ?", now.UTC()).
		Order("date_time ASC", "location ASC").
		Scan(ctx)
	return events, err
}

// ---------------- USERS ----------------

// GetUserByEmail → fetch one user, ErrNotFound when missing
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetOrCreateUser → insert the user unless the email is taken, then return
// the stored row. Concurrent first registrations of one email converge on
// a single user.
func (d *DB) GetOrCreateUser(ctx context.Context, user *models.User) (*models.User, bool, error) {
	insert := d.Bun.NewInsert().Model(user)
	if d.Bun.Dialect().Name() == dialect.MySQL {
		insert = insert.Ignore()
	} else {
		insert = insert.On("CONFLICT (email) DO NOTHING")
	}
	res, err := insert.Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	stored, err := d.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// ---------------- REGISTRATIONS ----------------

// CountRegistrations → number of users linked to eventID
func (d *DB) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.EventRegistration)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}

// IsRegistered → true when userID is linked to eventID
func (d *DB) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.EventRegistration)(nil)).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Exists(ctx)
}

// AddRegistration links userID to eventID in one transaction: the event's
// counter is only bumped while it is below capacity, and the composite key
// rejects a second link. Either failure rolls the whole step back.
func (d *DB) AddRegistration(ctx context.Context, eventID, userID string, at time.Time) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("registered_count = registered_count + 1").
			Where("id = ?", eventID).
			Where("registered_count < capacity").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("reserve seat: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			exists, err := tx.NewSelect().Model((*models.Event)(nil)).Where("id = ?", eventID).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return models.ErrNotFound
			}
			return models.ErrCapacityReached
		}

		link := &models.EventRegistration{
			EventID:   eventID,
			UserID:    userID,
			CreatedAt: at.UTC(),
		}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return models.ErrDuplicateLink
			}
			return fmt.Errorf("insert registration: %w", err)
		}
		return nil
	})
}

// RemoveRegistration unlinks userID from eventID and releases the seat.
func (d *DB) RemoveRegistration(ctx context.Context, eventID, userID string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.EventRegistration)(nil)).
			Where("event_id = ?", eventID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrRegistrationNotFound
		}

		_, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("registered_count = registered_count - 1").
			Where("id = ?", eventID).
			Where("registered_count > 0").
			Exec(ctx)
		return err
	})
}

type registrantRow struct {
	EventID string `bun:"event_id"`
	ID      string `bun:"id"`
	Name    string `bun:"name"`
	Email   string `bun:"email"`
}

// GetRegistrants → users linked to each of eventIDs, in registration order
func (d *DB) GetRegistrants(ctx context.Context, eventIDs []string) (map[string][]models.Registrant, error) {
	result := make(map[string][]models.Registrant, len(eventIDs))
	if len(eventIDs) == 0 {
		return result, nil
	}

	var rows []registrantRow
	err := d.Bun.NewSelect().
		TableExpr("event_registrations AS er").
		ColumnExpr("er.event_id, u.id, u.name, u.email").
		Join("JOIN users AS u ON u.id = er.user_id").
		Where("er.event_id IN (?)", bun.In(eventIDs)).
		OrderExpr("er.created_at ASC, u.email ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.EventID] = append(result[row.EventID], models.Registrant{
			ID:    row.ID,
			Name:  row.Name,
			Email: row.Email,
		})
	}
	return result, nil
}

// ListEventsWithRegistrants → every event with its registrants attached
func (d *DB) ListEventsWithRegistrants(ctx context.Context) ([]models.EventWithRegistrants, error) {
	events, err := d.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []models.EventWithRegistrants{}, nil
	}

	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}

	registrants, err := d.GetRegistrants(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]models.EventWithRegistrants, len(events))
	for i, event := range events {
		result[i] = models.EventWithRegistrants{
			Event:         event,
			Registrations: registrants[event.ID],
		}
		if result[i].Registrations == nil {
			result[i].Registrations = []models.Registrant{}
		}
	}
	return result, nil
}

// Ping → store liveness for the health endpoint
func (d *DB) Ping(ctx context.Context) error {
	return d.Bun.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
