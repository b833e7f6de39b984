// Package gpt4o adapts the GPT-4o image generation API, which takes its
// inputs as an images array (filesUrl) and reports results as a list.
package gpt4o

import (
	"errors"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/photon/internal/provider/extract"
	"github.com/kiranshivaraju/photon/pkg/models"
)

const (
	generatePath = "/api/v1/gpt4o-image/generate"
	statusPath   = "/api/v1/gpt4o-image/record-info"
)

var taskIDPaths = []string{
	"data.taskId",
	"data.task_id",
	"taskId",
	"task_id",
	"data.id",
}

var resultJSONPaths = []string{
	"resultJson",
	"data.resultJson",
}

var resultJSONInnerPaths = []string{
	"resultUrls.0",
	"result_urls.0",
}

var resultURLPaths = []string{
	"data.response.resultUrls.0",
	"data.info.result_urls.0",
	"data.info.resultUrls.0",
	"data.resultUrls.0",
	"data.result_urls.0",
	"resultUrls.0",
	"result_urls.0",
	"data.response.resultImageUrl",
	"data.resultImageUrl",
	"resultImageUrl",
	"data.url",
	"url",
}

var successFlagPaths = []string{"successFlag", "data.successFlag"}

var statusPaths = []string{"data.status", "status"}

var errorCodePaths = []string{"data.errorCode", "errorCode"}

var errorMessagePaths = []string{
	"data.errorMessage",
	"errorMessage",
	"data.info.errorMessage",
	"msg",
	"message",
}

// Adapter implements models.ProviderAdapter for GPT-4o image models.
type Adapter struct {
	model models.ModelConfig
}

func NewAdapter(model models.ModelConfig) *Adapter {
	return &Adapter{model: model}
}

func (a *Adapter) Name() string { return "gpt4o" }

type generateRequest struct {
	Prompt      string   `json:"prompt"`
	FilesURL    []string `json:"filesUrl"`
	Size        string   `json:"size"`
	NVariants   int      `json:"nVariants"`
	IsEnhance   bool     `json:"isEnhance"`
	CallBackURL string   `json:"callBackUrl"`
}

func (a *Adapter) BuildSubmitRequest(job *models.Job, callbackURL string) (models.SubmitRequest, error) {
	if strings.TrimSpace(job.Prompt) == "" {
		return models.SubmitRequest{}, errors.New("prompt is required for gpt-4o image")
	}

	files := []string{job.InputURL}
	if job.SecondaryInputURL != nil {
		files = append(files, *job.SecondaryInputURL)
	}

	return models.SubmitRequest{
		Path: generatePath,
		Body: generateRequest{
			Prompt:      job.Prompt,
			FilesURL:    files,
			Size:        extract.SettingString(job.Settings, "size", "1:1"),
			NVariants:   extract.SettingInt(job.Settings, "nVariants", 1),
			IsEnhance:   extract.SettingBool(job.Settings, "isEnhance", false),
			CallBackURL: callbackURL,
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
		msg = "gpt-4o image generation failed"
	}
	return code, msg
}

func (a *Adapter) CheckSuccess(body []byte) bool {
	if flag, ok := extract.Int(body, successFlagPaths...); ok && flag == 1 {
		return true
	}
	status, _ := extract.String(body, statusPaths...)
	return strings.EqualFold(status, "SUCCESS")
}

func (a *Adapter) CheckFailed(body []byte) bool {
	if flag, ok := extract.Int(body, successFlagPaths...); ok && (flag == 2 || flag == 3) {
		return true
	}
	switch status, _ := extract.String(body, statusPaths...); strings.ToUpper(status) {
	case "CREATE_TASK_FAILED", "GENERATE_FAILED":
		return true
	}
	// Informational codes such as 201 or 202 on an in-progress callback are
	// not failures.
	code, ok := extract.Int(body, "code")
	return ok && code >= 400
}

var _ models.ProviderAdapter = (*Adapter)(nil)
