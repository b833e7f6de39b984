package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
//
// Job status changes are conditional updates: the boolean they return reports
// whether this call applied the change. TransitionToTerminal also returns the
// resolved row so callers never need a second read to act on it. A false result with a nil error means
// another writer got there first and the caller must not repeat side effects.
type Store interface {
	Ping(ctx context.Context) error

	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetSourceOrganization(ctx context.Context, source, sourceID string) (uuid.UUID, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	FindJobByTaskID(ctx context.Context, taskID string) (*models.Job, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, taskID string) (bool, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	TransitionToTerminal(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.Job, bool, error)
	ListStuck(ctx context.Context, filter StuckFilter) ([]*models.Job, error)

	SettleJobTokens(ctx context.Context, tx *models.TokenTransaction) (bool, error)
}

// StuckFilter selects non-terminal jobs that never received a callback.
type StuckFilter struct {
	CreatedBefore time.Time
	Statuses      []string
	Limit         int
}

func (f StuckFilter) statuses() []string {
	if len(f.Statuses) == 0 {
		return models.ActiveStatuses
	}
	return f.Statuses
}

func (f StuckFilter) limit() int {
	if f.Limit <= 0 {
		return 10
	}
	return f.Limit
}

type jobUpdateParams struct {
	ResultURL        *string
	ErrorMessage     *string
	ErrorCode        *string
	CallbackReceived bool
}

type JobUpdateOption func(*jobUpdateParams)

func WithResultURL(url string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ResultURL = &url
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithErrorCode(code string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		if code != "" {
			p.ErrorCode = &code
		}
	}
}

// WithCallbackReceived marks the transition as driven by a provider callback.
func WithCallbackReceived() JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.CallbackReceived = true
	}
}

// terminalParams validates a terminal transition request before any write.
func terminalParams(status string, opts []JobUpdateOption) (*jobUpdateParams, error) {
	if !models.IsTerminalStatus(status) {
		return nil, ErrInvalidTransition
	}
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}
	if status == models.JobStatusSuccess {
		if params.ResultURL == nil || *params.ResultURL == "" {
			return nil, ErrInvalidTransition
		}
	} else {
		params.ResultURL = nil
	}
	return params, nil
}
