package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	metrics, handler, err := NewMetrics(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, metrics)
	assert.NotNil(t, handler)
}

func TestMetricsAreExported(t *testing.T) {
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	require.NoError(t, err)

	metrics.RecordHTTPRequest(ctx, "POST", "/jobs", 200, 0.05)
	metrics.RecordSubmission(ctx, "flux-kontext-pro", "submitted")
	metrics.RecordTerminal(ctx, "flux-kontext-pro", "success", "callback", 42)
	metrics.RecordCallback(ctx, "success")
	metrics.RecordProviderRequest(ctx, "submit", true, 0.3)
	metrics.RecordSweep(ctx, []string{"timeout", "processing"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"http_requests_total",
		"ai_jobs_submitted_total",
		"ai_job_terminal_transitions_total",
		"ai_job_callbacks_total",
		"provider_request_duration_seconds",
		"reconcile_sweeps_total",
	} {
		assert.Contains(t, string(body), name)
	}
	assert.Contains(t, string(body), `path="callback"`)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(ctx, "GET", "", 404, 0)
		m.RecordSubmission(ctx, "m", "failed")
		m.RecordTerminal(ctx, "m", "failed", "submit", 1)
		m.RecordCallback(ctx, "processing")
		m.RecordProviderRequest(ctx, "status", false, 1)
		m.RecordSweep(ctx, nil)
	})
}

func TestAttributes(t *testing.T) {
	assert.Equal(t, "2xx", statusAttr(201).Value.AsString())
	assert.Equal(t, "4xx", statusAttr(404).Value.AsString())
	assert.Equal(t, "unmatched", routeAttr("").Value.AsString())
	assert.Equal(t, "/jobs/{jobID}", routeAttr("/jobs/{jobID}").Value.AsString())
}
