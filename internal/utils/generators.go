package utils

import "github.com/google/uuid"

// GenerateID returns a new random identifier for events and users.
func GenerateID() string {
	return uuid.NewString()
}

// IsValidID reports whether id looks like an identifier produced by GenerateID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
