package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/cache"
	"github.com/kiranshivaraju/photon/internal/observability"
	"github.com/kiranshivaraju/photon/internal/provider"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// Paths that can resolve a job, used in logs and metrics.
const (
	PathSubmit     = "submit"
	PathCallback   = "callback"
	PathInlinePoll = "inline_poll"
	PathSweeper    = "sweeper"
	PathCancel     = "cancel"
)

// terminalSnapshotTTL is how long a resolved job stays in the status cache.
const terminalSnapshotTTL = 24 * time.Hour

// Accountant settles the token cost of a job once it is terminal.
type Accountant interface {
	Settle(ctx context.Context, job *models.Job, cost int64) error
}

// JobEvent is published when a job reaches a terminal status so the feature
// that owns the job can sync its own record.
type JobEvent struct {
	JobID        uuid.UUID `json:"jobId"`
	Source       string    `json:"source"`
	SourceID     *string   `json:"sourceId,omitempty"`
	Status       string    `json:"status"`
	ResultURL    *string   `json:"resultUrl,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
}

// Finalizer applies terminal transitions and, only when this caller's
// transition was the one applied, runs the downstream effects: token
// settlement, status cache refresh and the job event.
type Finalizer struct {
	store      store.Store
	cache      cache.Cache
	accountant Accountant
	registry   *provider.Registry
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewFinalizer creates a Finalizer. cache, accountant and metrics may be nil.
func NewFinalizer(st store.Store, ca cache.Cache, accountant Accountant, registry *provider.Registry, metrics *observability.Metrics) *Finalizer {
	return &Finalizer{
		store:      st,
		cache:      ca,
		accountant: accountant,
		registry:   registry,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Finalize moves the job to a terminal status. It returns the resolved job
// when this call applied the transition, or (nil, false) when the job was
// already terminal.
func (f *Finalizer) Finalize(ctx context.Context, jobID uuid.UUID, status, path string, opts ...store.JobUpdateOption) (*models.Job, bool, error) {
	job, applied, err := f.store.TransitionToTerminal(ctx, jobID, status, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("finalizing job %s: %w", jobID, err)
	}
	if !applied {
		return nil, false, nil
	}

	slog.Info("job finalized",
		"job_id", job.ID,
		"task_id", job.TaskIDValue(),
		"model", job.Model,
		"status", job.Status,
		"path", path,
	)

	f.settle(ctx, job)
	f.refreshCache(ctx, job)
	f.publish(ctx, job)
	f.metrics.RecordTerminal(ctx, job.Model, job.Status, path, job.Age(f.now()).Seconds())

	return job, true, nil
}

func (f *Finalizer) settle(ctx context.Context, job *models.Job) {
	if f.accountant == nil {
		return
	}
	var cost int64
	if job.Status == models.JobStatusSuccess && f.registry != nil {
		if cfg, _, err := f.registry.ForJob(job); err == nil {
			cost = cfg.TokenCost
		} else {
			slog.Warn("no catalog entry for finished job, settling at zero cost",
				"job_id", job.ID, "model", job.Model, "error", err)
		}
	}
	if err := f.accountant.Settle(ctx, job, cost); err != nil {
		slog.Error("token settlement failed", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

func (f *Finalizer) refreshCache(ctx context.Context, job *models.Job) {
	if f.cache == nil {
		return
	}
	if err := f.cache.SetJob(ctx, job, terminalSnapshotTTL); err != nil {
		slog.Warn("caching job snapshot failed", "job_id", job.ID, "error", err)
	}
}

func (f *Finalizer) publish(ctx context.Context, job *models.Job) {
	if f.cache == nil {
		return
	}
	payload, err := json.Marshal(JobEvent{
		JobID:        job.ID,
		Source:       job.Source,
		SourceID:     job.SourceID,
		Status:       job.Status,
		ResultURL:    job.ResultURL,
		ErrorMessage: job.ErrorMessage,
	})
	if err != nil {
		slog.Error("encoding job event failed", "job_id", job.ID, "error", err)
		return
	}
	if err := f.cache.Publish(ctx, cache.JobEventsChannel(job.Source), payload); err != nil {
		slog.Warn("publishing job event failed", "job_id", job.ID, "error", err)
	}
}
