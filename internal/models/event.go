package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID              string    `bun:"id,pk" json:"id"`
	Title           string    `bun:"title,unique,notnull" json:"title"`
	DateTime        time.Time `bun:"date_time,notnull" json:"dateTime"`
	Location        string    `bun:"location,notnull" json:"location"`
	Capacity        int       `bun:"capacity,notnull" json:"capacity"`
	RegisteredCount int       `bun:"registered_count,notnull" json:"-"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// EventWithRegistrants is the listing shape returned by get-events.
type EventWithRegistrants struct {
	Event
	Registrations []Registrant `json:"registrations"`
}

// EventStats reports how much of an event's capacity is in use.
type EventStats struct {
	TotalRegistrations int    `json:"totalRegistrations"`
	RemainingCapacity  int    `json:"remainingCapacity"`
	PercentageUsed     string `json:"percentageUsed"`
}
