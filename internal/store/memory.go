package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// MemoryStore is an in-memory Store with the same conditional-update
// semantics as PostgresStore. Safe for concurrent access. Intended for unit
// tests and local development.
type MemoryStore struct {
	mu sync.RWMutex

	orgs    map[uuid.UUID]*models.Organization
	sources map[string]uuid.UUID // key: "source\x00sourceID"
	keys    map[uuid.UUID]*models.APIKey
	jobs    map[uuid.UUID]*models.Job
	tasks   map[string]uuid.UUID
	tokens  map[uuid.UUID]*models.TokenTransaction // key: job id

	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:    make(map[uuid.UUID]*models.Organization),
		sources: make(map[string]uuid.UUID),
		keys:    make(map[uuid.UUID]*models.APIKey),
		jobs:    make(map[uuid.UUID]*models.Job),
		tasks:   make(map[string]uuid.UUID),
		tokens:  make(map[uuid.UUID]*models.TokenTransaction),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the store's time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// --- Organizations ---

// AddOrganization seeds an organization.
func (m *MemoryStore) AddOrganization(org *models.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *org
	m.orgs[org.ID] = &cp
}

// AddSourceRecord registers the organization that owns a feature record.
func (m *MemoryStore) AddSourceRecord(source, sourceID string, orgID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source+"\x00"+sourceID] = orgID
}

func (m *MemoryStore) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetSourceOrganization(_ context.Context, source, sourceID string) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sources[source+"\x00"+sourceID]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

// --- API Keys ---

func (m *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[id]; ok {
		now := m.now()
		k.LastUsedAt = &now
		k.UpdatedAt = now
	}
	return nil
}

func (m *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyPrefix == key.KeyPrefix && k.DeletedAt == nil {
			return ErrDuplicateKey
		}
	}
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

// --- Jobs ---

func (m *MemoryStore) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return ErrDuplicateKey
	}
	cp := *job
	if cp.Status == "" {
		cp.Status = models.JobStatusPending
	}
	if cp.Settings == nil {
		cp.Settings = map[string]any{}
	}
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryStore) FindJobByTaskID(_ context.Context, taskID string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.jobs[id]
	return &cp, nil
}

func (m *MemoryStore) MarkSubmitted(_ context.Context, id uuid.UUID, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != models.JobStatusPending || j.TaskID != nil {
		return false, nil
	}
	if _, taken := m.tasks[taskID]; taken {
		return false, ErrDuplicateKey
	}
	now := m.now()
	tid := taskID
	j.TaskID = &tid
	j.Status = models.JobStatusSubmitted
	j.SubmittedAt = &now
	j.UpdatedAt = now
	j.AttemptCount++
	m.tasks[taskID] = id
	return true, nil
}

func (m *MemoryStore) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != models.JobStatusSubmitted && j.Status != models.JobStatusProcessing {
		return false, nil
	}
	j.Status = models.JobStatusProcessing
	j.UpdatedAt = m.now()
	return true, nil
}

func (m *MemoryStore) TransitionToTerminal(_ context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.Job, bool, error) {
	params, err := terminalParams(status, opts)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if j.IsTerminal() {
		return nil, false, nil
	}

	now := m.now()
	j.Status = status
	j.ResultURL = params.ResultURL
	j.ErrorMessage = params.ErrorMessage
	j.ErrorCode = params.ErrorCode
	if params.CallbackReceived {
		j.CallbackReceived = true
		j.CallbackAt = &now
	}
	j.CompletedAt = &now
	j.UpdatedAt = now
	cp := *j
	return &cp, true, nil
}

func (m *MemoryStore) ListStuck(_ context.Context, filter StuckFilter) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := filter.statuses()
	var out []*models.Job
	for _, j := range m.jobs {
		if !slices.Contains(statuses, j.Status) || j.CallbackReceived || !j.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit := filter.limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Tokens ---

func (m *MemoryStore) SettleJobTokens(_ context.Context, t *models.TokenTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, settled := m.tokens[t.JobID]; settled {
		return false, nil
	}
	if t.Amount != 0 {
		org, ok := m.orgs[t.OrganizationID]
		if !ok {
			return false, ErrNotFound
		}
		org.TokenBalance += t.Amount
	}
	cp := *t
	m.tokens[t.JobID] = &cp
	return true, nil
}

// TokenTransactions returns every recorded settlement.
func (m *MemoryStore) TokenTransactions() []models.TokenTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.TokenTransaction, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, *t)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
