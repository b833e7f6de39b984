package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/jobs"
	"github.com/kiranshivaraju/photon/internal/provider"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
	"github.com/stretchr/testify/require"
)

const callbackEndpoint = "https://photon.example.com/webhooks/ai"

// --- fake provider client ---

type fakeClient struct {
	mu sync.Mutex

	submitBody []byte
	submitErr  error
	statusBody []byte
	statusErr  error

	submits     []models.SubmitRequest
	statusPaths []string
}

func (c *fakeClient) Submit(_ context.Context, req models.SubmitRequest) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits = append(c.submits, req)
	return c.submitBody, c.submitErr
}

func (c *fakeClient) Status(_ context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusPaths = append(c.statusPaths, path)
	return c.statusBody, c.statusErr
}

func (c *fakeClient) statusCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.statusPaths)
}

// --- fake cache ---

type publishedEvent struct {
	channel string
	payload []byte
}

type fakeCache struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]models.Job
	published []publishedEvent
}

func newFakeCache() *fakeCache {
	return &fakeCache{jobs: make(map[uuid.UUID]models.Job)}
}

func (c *fakeCache) Ping(_ context.Context) error { return nil }

func (c *fakeCache) SetJob(_ context.Context, job *models.Job, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *job
	cp.CallbackToken = ""
	c.jobs[job.ID] = cp
	return nil
}

func (c *fakeCache) GetJob(_ context.Context, id uuid.UUID) (*models.Job, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return &j, true, nil
}

func (c *fakeCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

func (c *fakeCache) Publish(_ context.Context, channel string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedEvent{channel: channel, payload: payload})
	return nil
}

func (c *fakeCache) AcquireLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return true, nil
}

func (c *fakeCache) events() []publishedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishedEvent(nil), c.published...)
}

// --- harness ---

type harness struct {
	store     *store.MemoryStore
	client    *fakeClient
	cache     *fakeCache
	registry  *provider.Registry
	finalizer *jobs.Finalizer
	submitter *jobs.Submitter
	callbacks *jobs.CallbackProcessor
	sweeper   *jobs.Sweeper
	manager   *jobs.Manager
	orgID     uuid.UUID
}

type harnessOption func(*config.Config)

func withInlinePoll(enabled bool) harnessOption {
	return func(c *config.Config) { c.Callback.InlinePoll = enabled }
}

func withAPIKey(key string) harnessOption {
	return func(c *config.Config) { c.Provider.APIKey = key }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := &config.Config{
		Provider: config.ProviderConfig{APIKey: "kie-test", PollTimeout: time.Second},
		Callback: config.CallbackConfig{Path: "/webhooks/ai", InlinePoll: true, InlinePollTimeout: time.Second},
		Sweeper: config.SweeperConfig{
			GracePeriod: time.Minute,
			MaxAge:      10 * time.Minute,
			BatchSize:   10,
			Concurrency: 4,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	registry, err := provider.NewRegistry(provider.DefaultCatalog(), []string{"flux-kontext-max"})
	require.NoError(t, err)

	h := &harness{
		store:    store.NewMemoryStore(),
		client:   &fakeClient{},
		cache:    newFakeCache(),
		registry: registry,
		orgID:    uuid.New(),
	}
	h.store.AddOrganization(&models.Organization{ID: h.orgID, Name: "acme", TokenBalance: 100})

	h.finalizer = jobs.NewFinalizer(h.store, h.cache, jobs.NewTokenAccountant(h.store), registry, nil)
	h.submitter = jobs.NewSubmitter(h.store, registry, h.client, h.finalizer, cfg.Provider, callbackEndpoint, nil)
	h.callbacks = jobs.NewCallbackProcessor(h.store, registry, h.client, h.finalizer, cfg.Callback, nil)
	h.sweeper = jobs.NewSweeper(h.store, registry, h.client, h.finalizer, cfg.Sweeper, cfg.Provider.PollTimeout, nil)
	h.manager = jobs.NewManager(h.store, h.cache, h.finalizer)
	return h
}

// seedSubmittedJob stores a flux job that was submitted age ago.
func (h *harness) seedSubmittedJob(t *testing.T, taskID string, age time.Duration) *models.Job {
	t.Helper()
	ctx := context.Background()
	created := time.Now().UTC().Add(-age)
	job := &models.Job{
		ID:             uuid.New(),
		OrganizationID: h.orgID,
		JobType:        models.JobTypeOptimize,
		Source:         "product",
		Provider:       "kie",
		Model:          "flux-kontext-pro",
		CallbackToken:  "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		InputURL:       "https://cdn.example.com/in.jpg",
		Prompt:         "white background",
		Status:         models.JobStatusPending,
		MaxAttempts:    1,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, h.store.CreateJob(ctx, job))
	if taskID != "" {
		applied, err := h.store.MarkSubmitted(ctx, job.ID, taskID)
		require.NoError(t, err)
		require.True(t, applied)
	}
	return job
}

func (h *harness) job(t *testing.T, id uuid.UUID) *models.Job {
	t.Helper()
	j, err := h.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return j
}

func (h *harness) balance(t *testing.T) int64 {
	t.Helper()
	org, err := h.store.GetOrganization(context.Background(), h.orgID)
	require.NoError(t, err)
	return org.TokenBalance
}

func strPtr(s string) *string { return &s }
