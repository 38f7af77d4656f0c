package models

import "errors"

// Store-level outcomes shared by the db and service layers.
var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateTitle       = errors.New("event title already exists")
	ErrCapacityReached      = errors.New("event capacity reached")
	ErrDuplicateLink        = errors.New("user already linked to event")
	ErrRegistrationNotFound = errors.New("registration not found")
)
