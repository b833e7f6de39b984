// Package market adapts the unified jobs API that fronts third-party models
// (nano-banana-edit, seedream, qwen). Requests nest their arguments under an
// "input" object; status payloads report a "state" string and deliver results
// as a stringified resultJson blob.
package market

import (
	"errors"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/photon/internal/provider/extract"
	"github.com/kiranshivaraju/photon/pkg/models"
)

const (
	createTaskPath = "/api/v1/jobs/createTask"
	recordInfoPath = "/api/v1/jobs/recordInfo"
)

var taskIDPaths = []string{
	"data.taskId",
	"data.task_id",
	"data.recordId",
	"taskId",
	"task_id",
	"id",
}

var resultJSONPaths = []string{
	"data.resultJson",
	"resultJson",
	"data.response.resultJson",
}

var resultJSONInnerPaths = []string{
	"resultUrls.0",
	"resultUrl",
	"images.0.url",
	"url",
}

var resultURLPaths = []string{
	"data.resultUrls.0",
	"resultUrls.0",
	"data.response.resultUrls.0",
	"data.output.image_url",
	"data.output.images.0.url",
	"output.images.0.url",
	"data.response.resultImageUrl",
	"data.resultImageUrl",
	"resultImageUrl",
	"data.url",
	"url",
}

var statePaths = []string{"data.state", "state"}

var failCodePaths = []string{"data.failCode", "failCode"}

var failMessagePaths = []string{
	"data.failMsg",
	"failMsg",
	"data.errorMessage",
	"errorMessage",
	"msg",
	"message",
}

// reservedInputKeys are owned by the adapter and never taken from settings.
var reservedInputKeys = map[string]bool{"prompt": true, "image_urls": true}

// Adapter implements models.ProviderAdapter for jobs-API models.
type Adapter struct {
	model models.ModelConfig
}

func NewAdapter(model models.ModelConfig) *Adapter {
	return &Adapter{model: model}
}

func (a *Adapter) Name() string { return "market" }

type createTaskRequest struct {
	Model       string         `json:"model"`
	CallBackURL string         `json:"callBackUrl"`
	Input       map[string]any `json:"input"`
}

func (a *Adapter) BuildSubmitRequest(job *models.Job, callbackURL string) (models.SubmitRequest, error) {
	if strings.TrimSpace(job.Prompt) == "" {
		return models.SubmitRequest{}, errors.New("prompt is required for " + a.model.ID)
	}

	images := []string{job.InputURL}
	if job.SecondaryInputURL != nil {
		images = append(images, *job.SecondaryInputURL)
	}
	if a.model.MaxInputs > 0 && len(images) > a.model.MaxInputs {
		return models.SubmitRequest{}, errors.New(a.model.ID + " accepts at most one input image")
	}

	input := map[string]any{
		"output_format": "png",
	}
	for k, v := range job.Settings {
		if !reservedInputKeys[k] {
			input[k] = v
		}
	}
	input["prompt"] = job.Prompt
	input["image_urls"] = images

	return models.SubmitRequest{
		Path: createTaskPath,
		Body: createTaskRequest{
			Model:       a.model.UpstreamModel,
			CallBackURL: callbackURL,
			Input:       input,
		},
	}, nil
}

func (a *Adapter) StatusPath(taskID string) string {
	return recordInfoPath + "?taskId=" + url.QueryEscape(taskID)
}

func (a *Adapter) SubmitError(body []byte) (string, bool) {
	return extract.APIError(body)
}

func (a *Adapter) ExtractTaskID(body []byte) (string, bool) {
	return extract.String(body, taskIDPaths...)
}

func (a *Adapter) ExtractResultURL(body []byte) (string, bool) {
	if u, ok := extract.NestedURL(body, resultJSONPaths, resultJSONInnerPaths); ok {
		return u, true
	}
	return extract.URL(body, resultURLPaths...)
}

func (a *Adapter) ExtractError(body []byte) (string, string) {
	code, _ := extract.String(body, failCodePaths...)
	if code == "" {
		if c, ok := extract.Int(body, "code"); ok && c != 200 {
			code, _ = extract.String(body, "code")
		}
	}
	msg, _ := extract.String(body, failMessagePaths...)
	if msg == "" {
		msg = a.model.ID + " task failed"
	}
	return code, msg
}

func (a *Adapter) CheckSuccess(body []byte) bool {
	state, _ := extract.String(body, statePaths...)
	return strings.EqualFold(state, "success")
}

func (a *Adapter) CheckFailed(body []byte) bool {
	switch state, _ := extract.String(body, statePaths...); strings.ToLower(state) {
	case "fail", "failed":
		return true
	}
	if code, ok := extract.String(body, failCodePaths...); ok && code != "0" {
		return true
	}
	_, failed := extract.APIError(body)
	return failed
}

var _ models.ProviderAdapter = (*Adapter)(nil)
