// Package flux adapts the Flux Kontext image-editing API.
//
// Submission takes flat fields. Status and callback payloads carry a numeric
// successFlag (0 generating, 1 success, 2 create failed, 3 generate failed)
// and put the output under response.resultImageUrl, although some callback
// variants omit the flag and only deliver the URL.
package flux

import (
	"errors"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/photon/internal/provider/extract"
	"github.com/kiranshivaraju/photon/pkg/models"
)

const (
	generatePath = "/api/v1/flux/kontext/generate"
	statusPath   = "/api/v1/flux/kontext/record-info"
)

var taskIDPaths = []string{
	"data.taskId",
	"data.task_id",
	"taskId",
	"task_id",
	"data.id",
	"id",
}

var resultJSONPaths = []string{
	"resultJson",
	"data.resultJson",
	"data.response.resultJson",
}

var resultJSONInnerPaths = []string{
	"resultUrls.0",
	"resultImageUrl",
	"url",
}

var resultURLPaths = []string{
	"data.response.resultImageUrl",
	"data.info.resultImageUrl",
	"data.resultImageUrl",
	"response.resultImageUrl",
	"resultImageUrl",
	"data.response.resultUrls.0",
	"data.info.resultUrls.0",
	"data.resultUrls.0",
	"resultUrls.0",
	"data.response.imageUrl",
	"data.imageUrl",
	"imageUrl",
	"data.url",
	"url",
}

var successFlagPaths = []string{"successFlag", "data.successFlag"}

var errorCodePaths = []string{"data.errorCode", "errorCode"}

var errorMessagePaths = []string{
	"data.errorMessage",
	"errorMessage",
	"data.failMsg",
	"msg",
	"message",
	"error",
}

// Adapter implements models.ProviderAdapter for Flux Kontext models.
type Adapter struct {
	model models.ModelConfig
}

func NewAdapter(model models.ModelConfig) *Adapter {
	return &Adapter{model: model}
}

func (a *Adapter) Name() string { return "flux" }

type generateRequest struct {
	Prompt            string `json:"prompt"`
	InputImage        string `json:"inputImage,omitempty"`
	Model             string `json:"model"`
	AspectRatio       string `json:"aspectRatio,omitempty"`
	OutputFormat      string `json:"outputFormat"`
	PromptUpsampling  bool   `json:"promptUpsampling"`
	EnableTranslation bool   `json:"enableTranslation"`
	SafetyTolerance   int    `json:"safetyTolerance"`
	CallBackURL       string `json:"callBackUrl"`
}

func (a *Adapter) BuildSubmitRequest(job *models.Job, callbackURL string) (models.SubmitRequest, error) {
	if job.SecondaryInputURL != nil {
		return models.SubmitRequest{}, errors.New("flux kontext accepts a single input image")
	}
	if strings.TrimSpace(job.Prompt) == "" {
		return models.SubmitRequest{}, errors.New("prompt is required for flux kontext")
	}

	return models.SubmitRequest{
		Path: generatePath,
		Body: generateRequest{
			Prompt:            job.Prompt,
			InputImage:        job.InputURL,
			Model:             a.model.UpstreamModel,
			AspectRatio:       extract.SettingString(job.Settings, "aspectRatio", ""),
			OutputFormat:      extract.SettingString(job.Settings, "outputFormat", "png"),
			PromptUpsampling:  extract.SettingBool(job.Settings, "promptUpsampling", false),
			EnableTranslation: extract.SettingBool(job.Settings, "enableTranslation", true),
			SafetyTolerance:   extract.SettingInt(job.Settings, "safetyTolerance", 2),
			CallBackURL:       callbackURL,
		},
	}, nil
}

func (a *Adapter) StatusPath(taskID string) string {
	return statusPath + "?taskId=" + url.QueryEscape(taskID)
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
	code, _ := extract.String(body, errorCodePaths...)
	if code == "" {
		if c, ok := extract.Int(body, "code"); ok && c != 200 {
			code, _ = extract.String(body, "code")
		}
	}
	msg, _ := extract.String(body, errorMessagePaths...)
	if msg == "" {
		msg = "flux kontext generation failed"
	}
	return code, msg
}

func (a *Adapter) CheckSuccess(body []byte) bool {
	flag, ok := extract.Int(body, successFlagPaths...)
	return ok && flag == 1
}

func (a *Adapter) CheckFailed(body []byte) bool {
	if flag, ok := extract.Int(body, successFlagPaths...); ok && (flag == 2 || flag == 3) {
		return true
	}
	_, failed := extract.APIError(body)
	return failed
}

var _ models.ProviderAdapter = (*Adapter)(nil)
