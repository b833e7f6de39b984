package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/photon/internal/api"
	mw "github.com/kiranshivaraju/photon/internal/api/middleware"
	"github.com/kiranshivaraju/photon/internal/observability"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub counter ---

type stubCounter struct{}

func (stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func okJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"data":{"status":"ok"}}`)
}

func newTestRouter(deps api.Dependencies) http.Handler {
	deps.Auth = mw.NewAuth(store.NewMemoryStore())
	deps.RateLimit = mw.NewRateLimit(stubCounter{}, 60)
	return api.NewRouter(deps)
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router := newTestRouter(api.Dependencies{
		HealthHandler:  okJSON,
		WebhookHandler: okJSON,
	})

	for _, tc := range []struct{ method, path string }{
		{"GET", "/health"},
		{"POST", "/webhooks/ai"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	}
}

func TestRouter_CustomCallbackPath(t *testing.T) {
	router := newTestRouter(api.Dependencies{
		CallbackPath:   "/hooks/kie",
		WebhookHandler: okJSON,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/hooks/kie?token=x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/ai", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(api.Dependencies{
		SubmitHandler:    okJSON,
		GetJobHandler:    okJSON,
		CancelJobHandler: okJSON,
		ReconcileHandler: okJSON,
	})

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/jobs"},
		{"GET", "/jobs/7b0d1e2a-9a1b-4c55-8b1a-0f6f0b1d2c3e"},
		{"POST", "/jobs/7b0d1e2a-9a1b-4c55-8b1a-0f6f0b1d2c3e/cancel"},
		{"POST", "/jobs/reconcile"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/analyze", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MissingHandlerIsNotImplemented(t *testing.T) {
	router := newTestRouter(api.Dependencies{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	metrics, metricsHandler, err := observability.NewMetrics(context.Background())
	require.NoError(t, err)

	router := newTestRouter(api.Dependencies{
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		HealthHandler:  okJSON,
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/health"`)
}
