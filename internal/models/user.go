package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Registrant is the public view of a user linked to an event.
type Registrant struct {
	ID    string `bun:"id" json:"id"`
	Name  string `bun:"name" json:"name"`
	Email string `bun:"email" json:"email"`
}
