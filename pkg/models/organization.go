package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant that owns jobs and pays for them in tokens.
type Organization struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	Name         string    `db:"name"          json:"name"`
	TokenBalance int64     `db:"token_balance" json:"token_balance"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
