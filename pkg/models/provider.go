// Package models contains shared data models used across the photon codebase.
package models

// ProviderAdapter describes how one provider API shapes requests and
// responses. The orchestrator never touches provider JSON directly; it always
// goes through an adapter selected from the model catalog.
type ProviderAdapter interface {
	// Name returns the adapter identifier (e.g., "flux", "market").
	Name() string

	// BuildSubmitRequest maps a job to the provider's submission call.
	// callbackURL already carries the job's callback token.
	BuildSubmitRequest(job *Job, callbackURL string) (SubmitRequest, error)

	// StatusPath returns the path of the provider's status endpoint for taskID.
	StatusPath(taskID string) string

	// SubmitError reports an error embedded in an otherwise successful
	// submission response.
	SubmitError(body []byte) (string, bool)

	// ExtractTaskID returns the provider task id from a submission response.
	ExtractTaskID(body []byte) (string, bool)

	// ExtractResultURL returns the output image URL from a status or callback payload.
	ExtractResultURL(body []byte) (string, bool)

	// ExtractError returns the provider error code and message from a failure payload.
	ExtractError(body []byte) (code string, message string)

	// CheckSuccess and CheckFailed may both be false for a payload that is
	// still in progress or not understood.
	CheckSuccess(body []byte) bool
	CheckFailed(body []byte) bool
}

// SubmitRequest is the provider-specific submission call built by an adapter.
type SubmitRequest struct {
	Path string
	Body any
}

// ModelConfig is one entry of the model catalog.
type ModelConfig struct {
	ID            string // public model id accepted by POST /jobs
	Provider      string // billing/provider name, e.g. "kie"
	Adapter       string // adapter kind: flux, gpt4o, market
	UpstreamModel string // model name sent to the provider
	TokenCost     int64
	Active        bool
	MaxInputs     int
}
