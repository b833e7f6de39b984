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
	"github.com/kiranshivaraju/photon/internal/provider/extract"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// Callback outcomes reported back to the provider.
const (
	OutcomeSuccess          = "success"
	OutcomeFailed           = "failed"
	OutcomeProcessing       = "processing"
	OutcomeAlreadyProcessed = "already_processed"
)

// CallbackResult is the acknowledgement for one provider callback.
type CallbackResult struct {
	JobID   uuid.UUID
	Outcome string
}

// CallbackProcessor authenticates provider callbacks and resolves the job
// they refer to.
type CallbackProcessor struct {
	store     store.Store
	registry  *provider.Registry
	client    provider.Client
	finalizer *Finalizer
	cfg       config.CallbackConfig
	metrics   *observability.Metrics
}

func NewCallbackProcessor(st store.Store, registry *provider.Registry, client provider.Client, finalizer *Finalizer, cfg config.CallbackConfig, metrics *observability.Metrics) *CallbackProcessor {
	return &CallbackProcessor{
		store:     st,
		registry:  registry,
		client:    client,
		finalizer: finalizer,
		cfg:       cfg,
		metrics:   metrics,
	}
}

// Process handles one callback body. token is the secret from the callback
// URL's query string. Repeated deliveries are safe: once a job is terminal
// every later callback yields OutcomeAlreadyProcessed and changes nothing.
func (p *CallbackProcessor) Process(ctx context.Context, token string, body []byte) (result *CallbackResult, err error) {
	defer func() {
		if err != nil {
			p.metrics.RecordCallback(ctx, "rejected")
		} else {
			p.metrics.RecordCallback(ctx, result.Outcome)
		}
	}()

	if !extract.Valid(body) {
		return nil, ErrInvalidPayload
	}
	taskID, ok := extract.CallbackTaskID(body)
	if !ok {
		return nil, ErrMissingTaskID
	}

	job, err := p.store.FindJobByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: task %s", ErrJobNotFound, taskID)
		}
		return nil, err
	}

	if !VerifyCallbackToken(job.CallbackToken, token) {
		slog.Warn("callback rejected: bad token", "job_id", job.ID, "task_id", taskID)
		return nil, ErrUnauthorized
	}

	if job.IsTerminal() {
		slog.Info("callback for finished job ignored", "job_id", job.ID, "task_id", taskID, "status", job.Status)
		return &CallbackResult{JobID: job.ID, Outcome: OutcomeAlreadyProcessed}, nil
	}

	_, adapter, err := p.registry.ForJob(job)
	if err != nil {
		return nil, fmt.Errorf("resolving adapter for job %s: %w", job.ID, err)
	}

	c := classify(adapter, body)
	slog.Info("callback received", "job_id", job.ID, "task_id", taskID, "verdict", c.verdict.String())

	switch c.verdict {
	case verdictSuccess, verdictInferredSuccess:
		return p.resolve(ctx, job, models.JobStatusSuccess, PathCallback,
			store.WithResultURL(c.resultURL), store.WithCallbackReceived())

	case verdictFailed:
		return p.resolve(ctx, job, models.JobStatusFailed, PathCallback,
			store.WithErrorMessage(c.errorMessage), store.WithErrorCode(c.errorCode), store.WithCallbackReceived())

	case verdictSuccessNoURL:
		if p.cfg.InlinePoll {
			if url, ok := p.inlinePoll(ctx, job, adapter); ok {
				return p.resolve(ctx, job, models.JobStatusSuccess, PathInlinePoll,
					store.WithResultURL(url), store.WithCallbackReceived())
			}
		}
		return p.markProcessing(ctx, job)

	default:
		slog.Warn("callback left job processing",
			"job_id", job.ID, "task_id", taskID, "error", ErrAmbiguousPayload)
		return p.markProcessing(ctx, job)
	}
}

func (p *CallbackProcessor) resolve(ctx context.Context, job *models.Job, status, path string, opts ...store.JobUpdateOption) (*CallbackResult, error) {
	_, applied, err := p.finalizer.Finalize(ctx, job.ID, status, path, opts...)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &CallbackResult{JobID: job.ID, Outcome: OutcomeAlreadyProcessed}, nil
	}
	return &CallbackResult{JobID: job.ID, Outcome: status}, nil
}

// markProcessing records that the job is alive without setting
// callback_received, so the sweeper keeps polling it.
func (p *CallbackProcessor) markProcessing(ctx context.Context, job *models.Job) (*CallbackResult, error) {
	applied, err := p.store.MarkProcessing(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("marking job %s processing: %w", job.ID, err)
	}
	if !applied {
		return &CallbackResult{JobID: job.ID, Outcome: OutcomeAlreadyProcessed}, nil
	}
	return &CallbackResult{JobID: job.ID, Outcome: OutcomeProcessing}, nil
}

// inlinePoll asks the status endpoint for the result URL a success callback
// left out. It is bounded and best effort: any failure defers to the sweeper.
func (p *CallbackProcessor) inlinePoll(ctx context.Context, job *models.Job, adapter models.ProviderAdapter) (string, bool) {
	timeout := p.cfg.InlinePollTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	body, err := p.client.Status(pollCtx, adapter.StatusPath(job.TaskIDValue()))
	p.metrics.RecordProviderRequest(ctx, "status", err == nil, time.Since(start).Seconds())
	if err != nil {
		slog.Warn("inline status poll failed", "job_id", job.ID, "task_id", job.TaskIDValue(), "error", err)
		return "", false
	}

	c := classify(adapter, body)
	if c.verdict != verdictSuccess && c.verdict != verdictInferredSuccess {
		slog.Info("inline status poll found no result", "job_id", job.ID, "verdict", c.verdict.String())
		return "", false
	}
	return c.resultURL, true
}
