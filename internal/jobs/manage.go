package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/cache"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// Manager serves caller-facing reads and cancellation of jobs. Every call
// is scoped to the caller's organization; other organizations' jobs look
// like missing jobs.
type Manager struct {
	store     store.Store
	cache     cache.Cache
	finalizer *Finalizer
}

// NewManager creates a Manager. ca may be nil.
func NewManager(st store.Store, ca cache.Cache, finalizer *Finalizer) *Manager {
	return &Manager{store: st, cache: ca, finalizer: finalizer}
}

// Get returns a job, preferring the cached terminal snapshot.
func (m *Manager) Get(ctx context.Context, jobID, orgID uuid.UUID) (*models.Job, error) {
	if m.cache != nil {
		job, found, err := m.cache.GetJob(ctx, jobID)
		if err != nil {
			slog.Warn("job cache read failed", "job_id", jobID, "error", err)
		}
		if found && job.OrganizationID == orgID {
			return job, nil
		}
	}

	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	if job.OrganizationID != orgID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Cancel moves a non-terminal job to cancelled. The provider is not told;
// a late callback for the task finds the job terminal and changes nothing.
func (m *Manager) Cancel(ctx context.Context, jobID, orgID uuid.UUID) (*models.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	if job.OrganizationID != orgID {
		return nil, ErrJobNotFound
	}
	if job.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyTerminal, job.Status)
	}

	cancelled, applied, err := m.finalizer.Finalize(ctx, jobID, models.JobStatusCancelled, PathCancel,
		store.WithErrorMessage("cancelled by caller"), store.WithErrorCode("CANCELLED"))
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadyTerminal
	}
	return cancelled, nil
}
