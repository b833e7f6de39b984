package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/jobs"
	"github.com/kiranshivaraju/photon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetOwnJob(t *testing.T) {
	h := newHarness(t)
	job := h.seedSubmittedJob(t, "fk_1", time.Minute)

	got, err := h.manager.Get(context.Background(), job.ID, h.orgID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSubmitted, got.Status)
	assert.Equal(t, "fk_1", got.TaskIDValue())
}

func TestManager_GetHidesOtherOrganizations(t *testing.T) {
	h := newHarness(t)
	job := h.seedSubmittedJob(t, "fk_1", time.Minute)

	_, err := h.manager.Get(context.Background(), job.ID, uuid.New())
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	_, err = h.manager.Get(context.Background(), uuid.New(), h.orgID)
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestManager_GetPrefersTerminalSnapshot(t *testing.T) {
	h := newHarness(t)
	job := h.seedSubmittedJob(t, "fk_1", time.Minute)
	_, err := h.callbacks.Process(context.Background(), job.CallbackToken, []byte(fluxSuccessCallback))
	require.NoError(t, err)

	got, err := h.manager.Get(context.Background(), job.ID, h.orgID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, got.Status)
	assert.Empty(t, got.CallbackToken, "snapshots never carry the callback secret")

	_, err = h.manager.Get(context.Background(), job.ID, uuid.New())
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestManager_Cancel(t *testing.T) {
	h := newHarness(t)
	job := h.seedSubmittedJob(t, "fk_1", time.Minute)
	ctx := context.Background()

	cancelled, err := h.manager.Cancel(ctx, job.ID, h.orgID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	assert.Equal(t, "CANCELLED", *cancelled.ErrorCode)
	assert.NotNil(t, cancelled.CompletedAt)
	assert.Equal(t, int64(100), h.balance(t))

	_, err = h.manager.Cancel(ctx, job.ID, h.orgID)
	assert.ErrorIs(t, err, jobs.ErrAlreadyTerminal)

	late, err := h.callbacks.Process(ctx, job.CallbackToken, []byte(fluxSuccessCallback))
	require.NoError(t, err)
	assert.Equal(t, jobs.OutcomeAlreadyProcessed, late.Outcome)
	assert.Equal(t, models.JobStatusCancelled, h.job(t, job.ID).Status)
}

func TestManager_CancelOtherOrganization(t *testing.T) {
	h := newHarness(t)
	job := h.seedSubmittedJob(t, "fk_1", time.Minute)

	_, err := h.manager.Cancel(context.Background(), job.ID, uuid.New())
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
	assert.Equal(t, models.JobStatusSubmitted, h.job(t, job.ID).Status)
}
