// Package mock provides a configurable ProviderAdapter for tests.
//
// Its default wire shape is deliberately simple:
//
//	submit response: {"taskId": "..."}
//	status/callback: {"taskId": "...", "status": "success|failed|running", "url": "...", "error": "..."}
package mock

import (
	"net/url"

	"github.com/kiranshivaraju/photon/internal/provider/extract"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// Adapter satisfies models.ProviderAdapter. Any Func left nil uses the
// default behaviour for the simple wire shape above.
type Adapter struct {
	AdapterName      string
	BuildFunc        func(job *models.Job, callbackURL string) (models.SubmitRequest, error)
	SubmitErrorFunc  func(body []byte) (string, bool)
	TaskIDFunc       func(body []byte) (string, bool)
	ResultURLFunc    func(body []byte) (string, bool)
	ErrorFunc        func(body []byte) (string, string)
	CheckSuccessFunc func(body []byte) bool
	CheckFailedFunc  func(body []byte) bool
}

// SubmitBody is the request body sent by the default BuildFunc.
type SubmitBody struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	InputURL    string `json:"inputUrl"`
	CallbackURL string `json:"callbackUrl"`
}

// NewAdapter returns an Adapter with default behaviour.
func NewAdapter() *Adapter {
	return &Adapter{AdapterName: "mock"}
}

func (a *Adapter) Name() string { return a.AdapterName }

func (a *Adapter) BuildSubmitRequest(job *models.Job, callbackURL string) (models.SubmitRequest, error) {
	if a.BuildFunc != nil {
		return a.BuildFunc(job, callbackURL)
	}
	return models.SubmitRequest{
		Path: "/mock/submit",
		Body: SubmitBody{Model: job.Model, Prompt: job.Prompt, InputURL: job.InputURL, CallbackURL: callbackURL},
	}, nil
}

func (a *Adapter) StatusPath(taskID string) string {
	return "/mock/status?taskId=" + url.QueryEscape(taskID)
}

func (a *Adapter) SubmitError(body []byte) (string, bool) {
	if a.SubmitErrorFunc != nil {
		return a.SubmitErrorFunc(body)
	}
	return extract.APIError(body)
}

func (a *Adapter) ExtractTaskID(body []byte) (string, bool) {
	if a.TaskIDFunc != nil {
		return a.TaskIDFunc(body)
	}
	return extract.String(body, "taskId", "data.taskId")
}

func (a *Adapter) ExtractResultURL(body []byte) (string, bool) {
	if a.ResultURLFunc != nil {
		return a.ResultURLFunc(body)
	}
	return extract.URL(body, "url", "data.url")
}

func (a *Adapter) ExtractError(body []byte) (string, string) {
	if a.ErrorFunc != nil {
		return a.ErrorFunc(body)
	}
	code, _ := extract.String(body, "errorCode")
	msg, ok := extract.String(body, "error")
	if !ok {
		msg = "mock failure"
	}
	return code, msg
}

func (a *Adapter) CheckSuccess(body []byte) bool {
	if a.CheckSuccessFunc != nil {
		return a.CheckSuccessFunc(body)
	}
	s, _ := extract.String(body, "status")
	return s == "success"
}

func (a *Adapter) CheckFailed(body []byte) bool {
	if a.CheckFailedFunc != nil {
		return a.CheckFailedFunc(body)
	}
	s, _ := extract.String(body, "status")
	return s == "failed"
}

var _ models.ProviderAdapter = (*Adapter)(nil)
