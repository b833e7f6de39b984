package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/api/response"
	"github.com/kiranshivaraju/photon/internal/jobs"
)

// Reconciler runs a reconciliation sweep on demand.
type Reconciler interface {
	Run(ctx context.Context, opts jobs.SweepOptions) (*jobs.SweepReport, error)
}

// NewReconcileHandler returns an http.HandlerFunc for POST /jobs/reconcile.
// An empty body sweeps a default batch.
func NewReconcileHandler(svc Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobID     *string `json:"jobId"`
			BatchSize int     `json:"batchSize"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.BatchSize < 0 || req.BatchSize > 50 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "batchSize must be between 0 and 50", nil)
			return
		}

		opts := jobs.SweepOptions{BatchSize: req.BatchSize}
		if req.JobID != nil {
			id, err := uuid.Parse(*req.JobID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobId must be a UUID", nil)
				return
			}
			opts.JobID = &id
		}

		report, err := svc.Run(r.Context(), opts)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		if report.Outcomes == nil {
			report.Outcomes = []jobs.SweepOutcome{}
		}
		response.JSON(w, report)
	}
}
