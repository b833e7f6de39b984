package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/observability"
	"github.com/kiranshivaraju/photon/internal/provider"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// SubmitRequest is a caller's request for one AI image job.
type SubmitRequest struct {
	JobType              string
	Source               string
	SourceID             *string
	Model                string
	InputURL             string
	SecondaryInputURL    *string
	Prompt               string
	Settings             map[string]any
	CallerOrganizationID uuid.UUID
	MaxAttempts          int
}

// defaultPrompts stand in for an omitted prompt. Every supported provider
// requires one.
var defaultPrompts = map[string]string{
	models.JobTypeOptimize: "Enhance this product photo: clean white background, balanced lighting, sharp focus, true-to-life colors.",
	models.JobTypeCombine:  "Combine the two images into one cohesive, realistic scene with consistent lighting and perspective.",
	models.JobTypeGenerate: "Create a high-quality, photorealistic image based on the reference image.",
}

// DefaultPrompt returns the prompt used when a request carries none.
func DefaultPrompt(jobType string) string {
	return defaultPrompts[jobType]
}

// SubmitResult reports what happened to a submission. Provider refusals are
// results, not errors: Status is failed and Error carries the reason.
type SubmitResult struct {
	JobID  uuid.UUID
	TaskID string
	Status string
	Error  string
}

func (r SubmitRequest) validate() error {
	if !models.IsValidJobType(r.JobType) {
		return fmt.Errorf("%w: jobType must be one of optimize, combine, generate", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if !isHTTPURL(r.InputURL) {
		return fmt.Errorf("%w: inputUrl must be an http(s) URL", ErrInvalidRequest)
	}
	switch {
	case r.JobType == models.JobTypeCombine && r.SecondaryInputURL == nil:
		return fmt.Errorf("%w: combine jobs require inputUrl2", ErrInvalidRequest)
	case r.JobType != models.JobTypeCombine && r.SecondaryInputURL != nil:
		return fmt.Errorf("%w: inputUrl2 is only accepted for combine jobs", ErrInvalidRequest)
	case r.SecondaryInputURL != nil && !isHTTPURL(*r.SecondaryInputURL):
		return fmt.Errorf("%w: inputUrl2 must be an http(s) URL", ErrInvalidRequest)
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("%w: maxAttempts must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Submitter creates jobs and hands them to the provider. It never waits for
// a result; completion arrives through the callback or the sweeper.
type Submitter struct {
	store       store.Store
	registry    *provider.Registry
	client      provider.Client
	finalizer   *Finalizer
	cfg         config.ProviderConfig
	callbackURL string
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewSubmitter creates a Submitter. callbackURL is the public webhook
// endpoint without the token.
func NewSubmitter(st store.Store, registry *provider.Registry, client provider.Client, finalizer *Finalizer, cfg config.ProviderConfig, callbackURL string, metrics *observability.Metrics) *Submitter {
	return &Submitter{
		store:       st,
		registry:    registry,
		client:      client,
		finalizer:   finalizer,
		cfg:         cfg,
		callbackURL: callbackURL,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the request, records a pending job and submits it.
// Returned errors are caller or configuration errors; a provider refusal
// yields a failed SubmitResult and a nil error.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	orgID, err := s.resolveOrganization(ctx, req)
	if err != nil {
		return nil, err
	}

	modelCfg, adapter, err := s.registry.Lookup(req.Model)
	if err != nil {
		if errors.Is(err, provider.ErrUnknownModel) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, req.Model)
		}
		return nil, err
	}

	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: provider API key is not set", ErrConfiguration)
	}

	token, err := NewCallbackToken()
	if err != nil {
		return nil, err
	}

	prompt := req.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt(req.JobType)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	now := s.now()
	job := &models.Job{
		ID:                uuid.New(),
		OrganizationID:    orgID,
		JobType:           req.JobType,
		Source:            req.Source,
		SourceID:          req.SourceID,
		Provider:          modelCfg.Provider,
		Model:             modelCfg.ID,
		CallbackToken:     token,
		InputURL:          req.InputURL,
		SecondaryInputURL: req.SecondaryInputURL,
		Prompt:            prompt,
		Settings:          req.Settings,
		Status:            models.JobStatusPending,
		MaxAttempts:       maxAttempts,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Building first means a request the adapter cannot express is rejected
	// before anything is persisted.
	providerReq, err := adapter.BuildSubmitRequest(job, s.callbackURLFor(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	slog.Info("job created", "job_id", job.ID, "model", job.Model, "source", job.Source, "organization_id", orgID)

	// Once the request is on the wire the provider may accept the task, so
	// the call and the bookkeeping after it outlive the caller.
	ctx = context.WithoutCancel(ctx)
	submitCtx := ctx
	if s.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, s.cfg.SubmitTimeout)
		defer cancel()
	}

	start := time.Now()
	body, err := s.client.Submit(submitCtx, providerReq)
	s.metrics.RecordProviderRequest(ctx, "submit", err == nil, time.Since(start).Seconds())

	if err != nil {
		return s.fail(ctx, job, fmt.Sprintf("%v: %v", ErrProviderSubmit, err), "SUBMIT_FAILED")
	}
	if msg, failed := adapter.SubmitError(body); failed {
		return s.fail(ctx, job, fmt.Sprintf("%v: %s", ErrProviderSubmit, msg), "SUBMIT_REJECTED")
	}
	taskID, ok := adapter.ExtractTaskID(body)
	if !ok {
		return s.fail(ctx, job, fmt.Sprintf("%v: response carried no task id", ErrProviderSubmit), "MISSING_TASK_ID")
	}

	applied, err := s.store.MarkSubmitted(ctx, job.ID, taskID)
	if err != nil {
		return nil, fmt.Errorf("recording task id for job %s: %w", job.ID, err)
	}
	if !applied {
		// Cancelled while the provider call was in flight.
		current, err := s.store.GetJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("reloading job %s: %w", job.ID, err)
		}
		return &SubmitResult{JobID: job.ID, Status: current.Status}, nil
	}

	s.metrics.RecordSubmission(ctx, job.Model, models.JobStatusSubmitted)
	slog.Info("job submitted", "job_id", job.ID, "task_id", taskID, "model", job.Model)

	return &SubmitResult{JobID: job.ID, TaskID: taskID, Status: models.JobStatusSubmitted}, nil
}

func (s *Submitter) fail(ctx context.Context, job *models.Job, msg, code string) (*SubmitResult, error) {
	slog.Warn("job submission failed", "job_id", job.ID, "model", job.Model, "error", msg)
	s.metrics.RecordSubmission(ctx, job.Model, models.JobStatusFailed)

	if _, _, err := s.finalizer.Finalize(ctx, job.ID, models.JobStatusFailed, PathSubmit,
		store.WithErrorMessage(msg), store.WithErrorCode(code)); err != nil {
		return nil, err
	}
	return &SubmitResult{JobID: job.ID, Status: models.JobStatusFailed, Error: msg}, nil
}

// resolveOrganization picks the organization that owns the job: the one that
// owns the source record when there is one, otherwise the caller's.
func (s *Submitter) resolveOrganization(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	if req.SourceID != nil && *req.SourceID != "" {
		orgID, err := s.store.GetSourceOrganization(ctx, req.Source, *req.SourceID)
		switch {
		case err == nil:
			if req.CallerOrganizationID != uuid.Nil && req.CallerOrganizationID != orgID {
				return uuid.Nil, fmt.Errorf("%w: %s/%s belongs to another organization",
					ErrOrganizationNotResolved, req.Source, *req.SourceID)
			}
			return orgID, nil
		case !errors.Is(err, store.ErrNotFound):
			return uuid.Nil, fmt.Errorf("resolving source organization: %w", err)
		}
	}

	if req.CallerOrganizationID == uuid.Nil {
		return uuid.Nil, ErrOrganizationNotResolved
	}
	if _, err := s.store.GetOrganization(ctx, req.CallerOrganizationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, ErrOrganizationNotResolved
		}
		return uuid.Nil, fmt.Errorf("resolving caller organization: %w", err)
	}
	return req.CallerOrganizationID, nil
}

func (s *Submitter) callbackURLFor(token string) string {
	sep := "?"
	if strings.Contains(s.callbackURL, "?") {
		sep = "&"
	}
	return s.callbackURL + sep + "token=" + token
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
