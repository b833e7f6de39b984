package jobs_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/jobs"
	"github.com/kiranshivaraju/photon/internal/provider"
	"github.com/kiranshivaraju/photon/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fluxRequest(orgID uuid.UUID) jobs.SubmitRequest {
	return jobs.SubmitRequest{
		JobType:              models.JobTypeOptimize,
		Source:               "product",
		SourceID:             strPtr("p-42"),
		Model:                "flux-kontext-pro",
		InputURL:             "https://cdn.example.com/in.jpg",
		Prompt:               "place on a white background",
		Settings:             map[string]any{"aspectRatio": "1:1"},
		CallerOrganizationID: orgID,
	}
}

func TestSubmit_Success(t *testing.T) {
	h := newHarness(t)
	h.client.submitBody = []byte(`{"code":200,"msg":"success","data":{"taskId":"fk_1"}}`)

	res, err := h.submitter.Submit(context.Background(), fluxRequest(h.orgID))
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusSubmitted, res.Status)
	assert.Equal(t, "fk_1", res.TaskID)
	assert.Empty(t, res.Error)

	job := h.job(t, res.JobID)
	assert.Equal(t, models.JobStatusSubmitted, job.Status)
	assert.Equal(t, "fk_1", job.TaskIDValue())
	assert.Equal(t, h.orgID, job.OrganizationID)
	assert.Equal(t, "kie", job.Provider)
	assert.Len(t, job.CallbackToken, 64)
	assert.Equal(t, 1, job.AttemptCount)
	assert.Equal(t, 1, job.MaxAttempts)

	require.Len(t, h.client.submits, 1)
	sent := h.client.submits[0]
	assert.Equal(t, "/api/v1/flux/kontext/generate", sent.Path)
	b, err := json.Marshal(sent.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, callbackEndpoint+"?token="+job.CallbackToken, body["callBackUrl"])
	assert.Equal(t, "https://cdn.example.com/in.jpg", body["inputImage"])
	assert.Equal(t, "1:1", body["aspectRatio"])
}

func TestSubmit_WithoutPromptUsesJobTypeDefault(t *testing.T) {
	h := newHarness(t)
	h.client.submitBody = []byte(`{"data":{"taskId":"T1"}}`)

	res, err := h.submitter.Submit(context.Background(), jobs.SubmitRequest{
		JobType:              models.JobTypeOptimize,
		Source:               "product",
		Model:                "flux-kontext-pro",
		InputURL:             "https://x/img.png",
		CallerOrganizationID: h.orgID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSubmitted, res.Status)
	assert.Equal(t, "T1", res.TaskID)

	job := h.job(t, res.JobID)
	assert.Equal(t, models.JobStatusSubmitted, job.Status)
	assert.Equal(t, jobs.DefaultPrompt(models.JobTypeOptimize), job.Prompt)

	require.Len(t, h.client.submits, 1)
	b, err := json.Marshal(h.client.submits[0].Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, jobs.DefaultPrompt(models.JobTypeOptimize), body["prompt"])
}

func TestDefaultPrompt(t *testing.T) {
	for _, jobType := range []string{models.JobTypeOptimize, models.JobTypeCombine, models.JobTypeGenerate} {
		assert.NotEmpty(t, jobs.DefaultPrompt(jobType), jobType)
	}
	assert.Empty(t, jobs.DefaultPrompt("unknown"))
}

// disconnectingClient cancels the caller's context as the request goes out.
type disconnectingClient struct {
	*fakeClient
	cancel context.CancelFunc
}

func (c disconnectingClient) Submit(ctx context.Context, req models.SubmitRequest) ([]byte, error) {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.fakeClient.Submit(ctx, req)
}

func TestSubmit_CallerDisconnectDoesNotAbortProviderCall(t *testing.T) {
	h := newHarness(t)
	h.client.submitBody = []byte(`{"code":200,"data":{"taskId":"fk_1"}}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := disconnectingClient{fakeClient: h.client, cancel: cancel}
	submitter := jobs.NewSubmitter(h.store, h.registry, client, h.finalizer,
		config.ProviderConfig{APIKey: "kie-test", SubmitTimeout: time.Second}, callbackEndpoint, nil)

	res, err := submitter.Submit(ctx, fluxRequest(h.orgID))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSubmitted, res.Status)
	assert.Equal(t, models.JobStatusSubmitted, h.job(t, res.JobID).Status)
}

func TestSubmit_ProviderFailuresMarkJobFailed(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantError string
		wantCode  string
	}{
		{"api error code", `{"code":402,"msg":"insufficient credits"}`, nil, "402: insufficient credits", "SUBMIT_REJECTED"},
		{"transport error", ``, provider.ErrProviderUnavailable, "provider unavailable", "SUBMIT_FAILED"},
		{"missing task id", `{"code":200,"data":{}}`, nil, "no task id", "MISSING_TASK_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.client.submitBody = []byte(tt.body)
			h.client.submitErr = tt.err

			res, err := h.submitter.Submit(context.Background(), fluxRequest(h.orgID))
			require.NoError(t, err, "provider failures are results, not errors")

			assert.Equal(t, models.JobStatusFailed, res.Status)
			assert.Contains(t, res.Error, tt.wantError)

			job := h.job(t, res.JobID)
			assert.Equal(t, models.JobStatusFailed, job.Status)
			assert.Nil(t, job.TaskID)
			require.NotNil(t, job.ErrorCode)
			assert.Equal(t, tt.wantCode, *job.ErrorCode)
			assert.NotNil(t, job.CompletedAt)

			// failed jobs release, never debit
			assert.Equal(t, int64(100), h.balance(t))
			txs := h.store.TokenTransactions()
			require.Len(t, txs, 1)
			assert.Equal(t, models.TokenTransactionRelease, txs[0].Kind)

			require.Len(t, h.cache.events(), 1)
			assert.Equal(t, "jobs:events:product", h.cache.events()[0].channel)
		})
	}
}

func TestSubmit_UnknownModel(t *testing.T) {
	h := newHarness(t)
	req := fluxRequest(h.orgID)
	req.Model = "dall-e-2"

	_, err := h.submitter.Submit(context.Background(), req)
	assert.ErrorIs(t, err, jobs.ErrUnknownModel)
	assert.Empty(t, h.client.submits)
}

func TestSubmit_InactiveModel(t *testing.T) {
	h := newHarness(t)
	req := fluxRequest(h.orgID)
	req.Model = "flux-kontext-max"

	_, err := h.submitter.Submit(context.Background(), req)
	assert.ErrorIs(t, err, jobs.ErrUnknownModel)
}

func TestSubmit_MissingCredentials(t *testing.T) {
	h := newHarness(t, withAPIKey(""))

	_, err := h.submitter.Submit(context.Background(), fluxRequest(h.orgID))
	assert.ErrorIs(t, err, jobs.ErrConfiguration)
	assert.Empty(t, h.client.submits)
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*jobs.SubmitRequest)
	}{
		{"bad job type", func(r *jobs.SubmitRequest) { r.JobType = "upscale" }},
		{"missing source", func(r *jobs.SubmitRequest) { r.Source = "" }},
		{"missing model", func(r *jobs.SubmitRequest) { r.Model = "" }},
		{"non-http input", func(r *jobs.SubmitRequest) { r.InputURL = "file:///etc/passwd" }},
		{"combine without second input", func(r *jobs.SubmitRequest) { r.JobType = models.JobTypeCombine }},
		{"second input on optimize", func(r *jobs.SubmitRequest) { r.SecondaryInputURL = strPtr("https://cdn/b.jpg") }},
		{"adapter rejects combine", func(r *jobs.SubmitRequest) {
			r.JobType = models.JobTypeCombine
			r.SecondaryInputURL = strPtr("https://cdn/b.jpg")
		}},
		{"negative attempts", func(r *jobs.SubmitRequest) { r.MaxAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := fluxRequest(h.orgID)
			tt.mutate(&req)

			_, err := h.submitter.Submit(context.Background(), req)
			assert.ErrorIs(t, err, jobs.ErrInvalidRequest)
			assert.Empty(t, h.client.submits)
		})
	}
}

func TestSubmit_CombineOnMultiImageModel(t *testing.T) {
	h := newHarness(t)
	h.client.submitBody = []byte(`{"code":200,"data":{"taskId":"4o_1"}}`)
	req := fluxRequest(h.orgID)
	req.JobType = models.JobTypeCombine
	req.Model = "gpt-4o-image"
	req.SecondaryInputURL = strPtr("https://cdn.example.com/b.jpg")

	res, err := h.submitter.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSubmitted, res.Status)
	assert.Equal(t, "https://cdn.example.com/b.jpg", *h.job(t, res.JobID).SecondaryInputURL)
}

func TestSubmit_OrganizationResolution(t *testing.T) {
	t.Run("source record wins when caller matches", func(t *testing.T) {
		h := newHarness(t)
		h.store.AddSourceRecord("product", "p-42", h.orgID)
		h.client.submitBody = []byte(`{"code":200,"data":{"taskId":"t"}}`)

		res, err := h.submitter.Submit(context.Background(), fluxRequest(h.orgID))
		require.NoError(t, err)
		assert.Equal(t, h.orgID, h.job(t, res.JobID).OrganizationID)
	})

	t.Run("source record without caller", func(t *testing.T) {
		h := newHarness(t)
		h.store.AddSourceRecord("product", "p-42", h.orgID)
		h.client.submitBody = []byte(`{"code":200,"data":{"taskId":"t"}}`)

		res, err := h.submitter.Submit(context.Background(), fluxRequest(uuid.Nil))
		require.NoError(t, err)
		assert.Equal(t, h.orgID, h.job(t, res.JobID).OrganizationID)
	})

	t.Run("source record owned by another organization", func(t *testing.T) {
		h := newHarness(t)
		h.store.AddSourceRecord("product", "p-42", uuid.New())

		_, err := h.submitter.Submit(context.Background(), fluxRequest(h.orgID))
		assert.ErrorIs(t, err, jobs.ErrOrganizationNotResolved)
	})

	t.Run("neither source record nor caller", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.submitter.Submit(context.Background(), fluxRequest(uuid.Nil))
		assert.ErrorIs(t, err, jobs.ErrOrganizationNotResolved)
	})

	t.Run("unknown caller organization", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.submitter.Submit(context.Background(), fluxRequest(uuid.New()))
		assert.ErrorIs(t, err, jobs.ErrOrganizationNotResolved)
	})
}
