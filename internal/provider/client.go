package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/pkg/models"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// Client is the transport to the provider API. Adapters decide paths and
// bodies; the client only moves bytes and classifies transport failures.
type Client interface {
	Submit(ctx context.Context, req models.SubmitRequest) ([]byte, error)
	Status(ctx context.Context, path string) ([]byte, error)
}

// HTTPClient implements Client over the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a provider client. Requests are paced by a token
// bucket shared by submissions and status polls.
func NewHTTPClient(cfg config.ProviderConfig) *HTTPClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Submit posts a submission request and returns the raw 2xx response body.
func (c *HTTPClient) Submit(ctx context.Context, req models.SubmitRequest) ([]byte, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding submit request: %w", err)
	}
	return c.do(ctx, http.MethodPost, req.Path, payload)
}

// Status fetches a task's current state from the provider's status endpoint.
func (c *HTTPClient) Status(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredentials
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyError(err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return respBody, fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode, snippet(respBody))
	}
	return respBody, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
