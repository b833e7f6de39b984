package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/observability"
	"github.com/kiranshivaraju/photon/internal/provider"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
	"golang.org/x/sync/errgroup"
)

const maxSweepBatch = 50

// Sweep outcomes beyond the callback outcomes.
const (
	OutcomeTimeout = "timeout"
	OutcomePending = "pending"
	OutcomeError   = "error"
)

// SweepOptions narrows one sweep. A JobID sweeps exactly that job.
type SweepOptions struct {
	JobID     *uuid.UUID
	BatchSize int
}

// SweepOutcome is what the sweep did with one job.
type SweepOutcome struct {
	JobID   uuid.UUID `json:"jobId"`
	TaskID  string    `json:"taskId,omitempty"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Checked  int            `json:"checked"`
	Outcomes []SweepOutcome `json:"outcomes"`
}

// Sweeper reconciles jobs whose callback never arrived by polling the
// provider's status endpoint, and expires jobs older than the age ceiling.
type Sweeper struct {
	store       store.Store
	registry    *provider.Registry
	client      provider.Client
	finalizer   *Finalizer
	cfg         config.SweeperConfig
	pollTimeout time.Duration
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewSweeper(st store.Store, registry *provider.Registry, client provider.Client, finalizer *Finalizer, cfg config.SweeperConfig, pollTimeout time.Duration, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{
		store:       st,
		registry:    registry,
		client:      client,
		finalizer:   finalizer,
		cfg:         cfg,
		pollTimeout: pollTimeout,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the sweeper's time source.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
	s.finalizer.now = now
}

// Run performs one sweep. Per-job problems are reported in the outcomes;
// only failing to select jobs at all is returned as an error.
func (s *Sweeper) Run(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	candidates, err := s.selectJobs(ctx, opts)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Checked: len(candidates), Outcomes: make([]SweepOutcome, len(candidates))}

	concurrency := s.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, job := range candidates {
		g.Go(func() error {
			report.Outcomes[i] = s.check(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	names := make([]string, len(report.Outcomes))
	for i, o := range report.Outcomes {
		names[i] = o.Outcome
	}
	s.metrics.RecordSweep(ctx, names)
	if report.Checked > 0 {
		slog.Info("sweep finished", "checked", report.Checked)
	}

	return report, nil
}

func (s *Sweeper) selectJobs(ctx context.Context, opts SweepOptions) ([]*models.Job, error) {
	if opts.JobID != nil {
		job, err := s.store.GetJob(ctx, *opts.JobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrJobNotFound, *opts.JobID)
			}
			return nil, err
		}
		return []*models.Job{job}, nil
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.cfg.BatchSize
	}
	if batch <= 0 {
		batch = 10
	}
	if batch > maxSweepBatch {
		batch = maxSweepBatch
	}

	jobs, err := s.store.ListStuck(ctx, store.StuckFilter{
		CreatedBefore: s.now().Add(-s.cfg.GracePeriod),
		Statuses:      models.ActiveStatuses,
		Limit:         batch,
	})
	if err != nil {
		return nil, fmt.Errorf("selecting stuck jobs: %w", err)
	}
	return jobs, nil
}

func (s *Sweeper) check(ctx context.Context, job *models.Job) SweepOutcome {
	out := SweepOutcome{JobID: job.ID, TaskID: job.TaskIDValue()}
	if job.IsTerminal() {
		out.Outcome = OutcomeAlreadyProcessed
		return out
	}

	if out.TaskID != "" {
		if resolved, ok := s.poll(ctx, job, &out); ok {
			return resolved
		}
	}

	age := job.Age(s.now())
	if s.cfg.MaxAge > 0 && age > s.cfg.MaxAge {
		msg := fmt.Sprintf("%v after %s waiting for provider", ErrProviderTimeout, age.Truncate(time.Second))
		_, applied, err := s.finalizer.Finalize(ctx, job.ID, models.JobStatusTimeout, PathSweeper,
			store.WithErrorMessage(msg), store.WithErrorCode("TIMEOUT"))
		return s.finish(out, models.JobStatusTimeout, applied, err)
	}

	if out.TaskID == "" {
		out.Outcome = OutcomePending
		if out.Detail == "" {
			out.Detail = "not yet submitted"
		}
		return out
	}

	applied, err := s.store.MarkProcessing(ctx, job.ID)
	return s.finish(out, OutcomeProcessing, applied, err)
}

// poll asks the provider for the job's status. It returns ok when the status
// resolved the job (or lost the race to something that did).
func (s *Sweeper) poll(ctx context.Context, job *models.Job, out *SweepOutcome) (SweepOutcome, bool) {
	_, adapter, err := s.registry.ForJob(job)
	if err != nil {
		out.Detail = err.Error()
		return *out, false
	}

	timeout := s.pollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	body, err := s.client.Status(pollCtx, adapter.StatusPath(out.TaskID))
	s.metrics.RecordProviderRequest(ctx, "status", err == nil, time.Since(start).Seconds())
	if err != nil {
		slog.Warn("sweep status poll failed", "job_id", job.ID, "task_id", out.TaskID, "error", err)
		out.Detail = err.Error()
		return *out, false
	}

	c := classify(adapter, body)
	switch c.verdict {
	case verdictSuccess, verdictInferredSuccess:
		_, applied, err := s.finalizer.Finalize(ctx, job.ID, models.JobStatusSuccess, PathSweeper,
			store.WithResultURL(c.resultURL))
		return s.finish(*out, models.JobStatusSuccess, applied, err), true
	case verdictFailed:
		_, applied, err := s.finalizer.Finalize(ctx, job.ID, models.JobStatusFailed, PathSweeper,
			store.WithErrorMessage(c.errorMessage), store.WithErrorCode(c.errorCode))
		return s.finish(*out, models.JobStatusFailed, applied, err), true
	}

	out.Detail = "provider reports " + c.verdict.String()
	return *out, false
}

func (s *Sweeper) finish(out SweepOutcome, outcome string, applied bool, err error) SweepOutcome {
	switch {
	case err != nil:
		slog.Error("sweep update failed", "job_id", out.JobID, "outcome", outcome, "error", err)
		out.Outcome = OutcomeError
		out.Detail = err.Error()
	case !applied:
		out.Outcome = OutcomeAlreadyProcessed
	default:
		out.Outcome = outcome
	}
	return out
}
