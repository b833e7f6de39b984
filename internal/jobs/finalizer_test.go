package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/jobs"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreadableStore resolves jobs normally but fails every job read.
type unreadableStore struct {
	*store.MemoryStore
}

func (unreadableStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, errors.New("transient read error")
}

func TestFinalize_EffectsDoNotDependOnJobReads(t *testing.T) {
	h := newHarness(t)
	job := h.seedSubmittedJob(t, "fk_1", 2*time.Minute)

	st := unreadableStore{MemoryStore: h.store}
	finalizer := jobs.NewFinalizer(st, h.cache, jobs.NewTokenAccountant(st), h.registry, nil)
	ctx := context.Background()

	resolved, applied, err := finalizer.Finalize(ctx, job.ID, models.JobStatusSuccess, jobs.PathCallback,
		store.WithResultURL("https://img.example.com/out.png"), store.WithCallbackReceived())
	require.NoError(t, err)
	require.True(t, applied)
	require.NotNil(t, resolved)
	assert.Equal(t, models.JobStatusSuccess, resolved.Status)

	assert.Len(t, h.store.TokenTransactions(), 1)
	assert.Equal(t, int64(95), h.balance(t))
	assert.Len(t, h.cache.events(), 1)

	// a redelivery loses the conditional update and repeats nothing
	resolved, applied, err = finalizer.Finalize(ctx, job.ID, models.JobStatusSuccess, jobs.PathCallback,
		store.WithResultURL("https://img.example.com/out.png"))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, resolved)
	assert.Len(t, h.store.TokenTransactions(), 1)
	assert.Len(t, h.cache.events(), 1)
}

func TestFinalize_UnknownJob(t *testing.T) {
	h := newHarness(t)

	_, applied, err := h.finalizer.Finalize(context.Background(), uuid.New(), models.JobStatusFailed, jobs.PathSweeper)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, applied)
}
