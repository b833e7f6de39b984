package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/api/response"
	"github.com/kiranshivaraju/photon/internal/jobs"
)

// CallbackProcessor resolves jobs from provider callbacks.
type CallbackProcessor interface {
	Process(ctx context.Context, token string, body []byte) (*jobs.CallbackResult, error)
}

type callbackResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status string    `json:"status"`
}

// NewWebhookHandler returns an http.HandlerFunc for the public provider
// callback endpoint. The token travels in the query string because that is
// the only part of the callback URL the provider echoes back.
func NewWebhookHandler(svc CallbackProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Unreadable body", nil)
			return
		}

		result, err := svc.Process(r.Context(), r.URL.Query().Get("token"), body)
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrInvalidPayload):
				response.Error(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Body must be JSON", nil)
			case errors.Is(err, jobs.ErrMissingTaskID):
				response.Error(w, http.StatusBadRequest, "MISSING_TASK_ID", "No task id in payload", nil)
			case errors.Is(err, jobs.ErrJobNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job for this task", nil)
			case errors.Is(err, jobs.ErrUnauthorized):
				response.Error(w, http.StatusUnauthorized, "INVALID_CALLBACK_TOKEN", "Invalid callback token", nil)
			default:
				writeJobError(w, r, err)
			}
			return
		}

		response.JSON(w, callbackResponse{JobID: result.JobID, Status: result.Outcome})
	}
}
