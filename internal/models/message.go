package models

import "time"

const (
	MessageRegistrationCreated   = "registration.created"
	MessageRegistrationCancelled = "registration.cancelled"
)

// RegistrationMessage is published whenever a registration link changes.
type RegistrationMessage struct {
	Type       string    `json:"type"`
	EventID    string    `json:"eventId"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RegistrationPass is the payload sealed inside a registration QR code.
type RegistrationPass struct {
	EventID  string    `json:"eventId"`
	UserID   string    `json:"userId"`
	Email    string    `json:"email"`
	Title    string    `json:"title"`
	DateTime time.Time `json:"dateTime"`
	IssuedAt time.Time `json:"issuedAt"`
}
