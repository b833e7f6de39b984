package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// TokenAccountant settles jobs against the organization token balance.
// Successful jobs are debited their model's cost; every other terminal
// status records a zero-amount release so each job settles exactly once.
type TokenAccountant struct {
	store store.Store
}

func NewTokenAccountant(st store.Store) *TokenAccountant {
	return &TokenAccountant{store: st}
}

func (a *TokenAccountant) Settle(ctx context.Context, job *models.Job, cost int64) error {
	t := &models.TokenTransaction{
		ID:             uuid.New(),
		OrganizationID: job.OrganizationID,
		JobID:          job.ID,
		Kind:           models.TokenTransactionRelease,
		Model:          job.Model,
		CreatedAt:      time.Now().UTC(),
	}
	if job.Status == models.JobStatusSuccess && cost > 0 {
		t.Kind = models.TokenTransactionDebit
		t.Amount = -cost
	}

	settled, err := a.store.SettleJobTokens(ctx, t)
	if err != nil {
		return err
	}
	if !settled {
		slog.Warn("job already settled", "job_id", job.ID)
	}
	return nil
}

var _ Accountant = (*TokenAccountant)(nil)
