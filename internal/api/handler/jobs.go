package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/photon/internal/api/middleware"
	"github.com/kiranshivaraju/photon/internal/api/response"
	"github.com/kiranshivaraju/photon/internal/jobs"
	"github.com/kiranshivaraju/photon/pkg/models"
)

const maxRequestBytes = 1 << 20

// Submitter defines what the submit handler depends on.
type Submitter interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (*jobs.SubmitResult, error)
}

// JobManager serves reads and cancellation of a caller's jobs.
type JobManager interface {
	Get(ctx context.Context, jobID, orgID uuid.UUID) (*models.Job, error)
	Cancel(ctx context.Context, jobID, orgID uuid.UUID) (*models.Job, error)
}

type submitRequest struct {
	JobType     string         `json:"jobType"`
	Source      string         `json:"source"`
	SourceID    *string        `json:"sourceId"`
	Model       string         `json:"model"`
	InputURL    string         `json:"inputUrl"`
	InputURL2   *string        `json:"inputUrl2"`
	Prompt      string         `json:"prompt"`
	Settings    map[string]any `json:"settings"`
	MaxAttempts int            `json:"maxAttempts"`
}

type submitResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	TaskID string    `json:"taskId,omitempty"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// NewSubmitHandler returns an http.HandlerFunc for POST /jobs.
func NewSubmitHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := mw.GetOrganizationID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing organization", nil)
			return
		}

		var req submitRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		result, err := svc.Submit(r.Context(), jobs.SubmitRequest{
			JobType:              strings.TrimSpace(req.JobType),
			Source:               strings.TrimSpace(req.Source),
			SourceID:             req.SourceID,
			Model:                strings.TrimSpace(req.Model),
			InputURL:             strings.TrimSpace(req.InputURL),
			SecondaryInputURL:    req.InputURL2,
			Prompt:               req.Prompt,
			Settings:             req.Settings,
			CallerOrganizationID: orgID,
			MaxAttempts:          req.MaxAttempts,
		})
		if err != nil {
			writeJobError(w, r, err)
			return
		}

		response.JSON(w, submitResponse{
			JobID:  result.JobID,
			TaskID: result.TaskID,
			Status: result.Status,
			Error:  result.Error,
		})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /jobs/{jobID}.
func NewGetJobHandler(svc JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, jobID, ok := jobScope(w, r)
		if !ok {
			return
		}

		job, err := svc.Get(r.Context(), jobID, orgID)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for POST /jobs/{jobID}/cancel.
func NewCancelJobHandler(svc JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, jobID, ok := jobScope(w, r)
		if !ok {
			return
		}

		job, err := svc.Cancel(r.Context(), jobID, orgID)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

func jobScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, ok := mw.GetOrganizationID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing organization", nil)
		return uuid.Nil, uuid.Nil, false
	}
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, jobID, true
}

// writeJobError maps job errors to HTTP responses. Unexpected errors are
// logged and reported without detail.
func writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidRequest):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", detail(err, jobs.ErrInvalidRequest), nil)
	case errors.Is(err, jobs.ErrUnknownModel):
		response.Error(w, http.StatusNotFound, "UNKNOWN_MODEL", err.Error(), nil)
	case errors.Is(err, jobs.ErrJobNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
	case errors.Is(err, jobs.ErrAlreadyTerminal):
		response.Error(w, http.StatusConflict, "JOB_ALREADY_TERMINAL", err.Error(), nil)
	case errors.Is(err, jobs.ErrOrganizationNotResolved):
		response.Error(w, http.StatusUnprocessableEntity, "ORGANIZATION_NOT_RESOLVED", err.Error(), nil)
	case errors.Is(err, jobs.ErrConfiguration):
		slog.Error("provider misconfigured", "error", err, "request_id", mw.GetRequestID(r.Context()))
		response.Error(w, http.StatusInternalServerError, "CONFIGURATION_ERROR",
			"The AI provider is not configured", nil)
	default:
		slog.Error("job request failed", "error", err, "path", r.URL.Path,
			"request_id", mw.GetRequestID(r.Context()))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

// detail strips the sentinel prefix from a wrapped validation error.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
