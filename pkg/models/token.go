package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TokenTransactionDebit   = "debit"
	TokenTransactionRelease = "release"
)

// TokenTransaction records the single accounting effect of a terminal job.
// Amount is negative for debits and zero for releases.
type TokenTransaction struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	JobID          uuid.UUID `db:"job_id"          json:"job_id"`
	Kind           string    `db:"kind"            json:"kind"`
	Amount         int64     `db:"amount"          json:"amount"`
	Model          string    `db:"model"           json:"model"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}
