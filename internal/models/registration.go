package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventRegistration links a user to an event. The composite key makes a
// second link for the same pair impossible.
type EventRegistration struct {
	bun.BaseModel `bun:"table:event_registrations,alias:er"`

	EventID   string    `bun:"event_id,pk"`
	UserID    string    `bun:"user_id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type CreateEventRequest struct {
	Title    string `json:"title" validate:"required"`
	DateTime string `json:"dateTime" validate:"required"`
	Location string `json:"location" validate:"required"`
	Capacity int    `json:"capacity" validate:"required"`
}

type RegistrationRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
}

type CancellationRequest struct {
	Email   string `json:"email" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
}
