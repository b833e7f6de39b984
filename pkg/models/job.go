package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusSubmitted  = "submitted"
	JobStatusProcessing = "processing"
	JobStatusSuccess    = "success"
	JobStatusFailed     = "failed"
	JobStatusTimeout    = "timeout"
	JobStatusCancelled  = "cancelled"
)

const (
	JobTypeOptimize = "optimize"
	JobTypeCombine  = "combine"
	JobTypeGenerate = "generate"
)

// TerminalStatuses lists every status from which no further transition is allowed.
var TerminalStatuses = []string{JobStatusSuccess, JobStatusFailed, JobStatusTimeout, JobStatusCancelled}

// ActiveStatuses lists the non-terminal statuses.
var ActiveStatuses = []string{JobStatusPending, JobStatusSubmitted, JobStatusProcessing}

// IsTerminalStatus reports whether status is one of the terminal statuses.
func IsTerminalStatus(status string) bool {
	switch status {
	case JobStatusSuccess, JobStatusFailed, JobStatusTimeout, JobStatusCancelled:
		return true
	}
	return false
}

// IsValidJobType reports whether t is a supported job type.
func IsValidJobType(t string) bool {
	switch t {
	case JobTypeOptimize, JobTypeCombine, JobTypeGenerate:
		return true
	}
	return false
}

// Job is one entry in the AI job ledger. A job is created pending, moves to
// submitted once the provider accepts it, and is resolved exactly once by a
// callback, an inline poll or the reconciliation sweep.
type Job struct {
	ID                uuid.UUID      `db:"id"                  json:"jobId"`
	OrganizationID    uuid.UUID      `db:"organization_id"     json:"organizationId"`
	JobType           string         `db:"job_type"            json:"jobType"`
	Source            string         `db:"source"              json:"source"`
	SourceID          *string        `db:"source_id"           json:"sourceId,omitempty"`
	Provider          string         `db:"provider"            json:"provider"`
	Model             string         `db:"model"               json:"model"`
	TaskID            *string        `db:"task_id"             json:"taskId,omitempty"`
	CallbackToken     string         `db:"callback_token"      json:"-"`
	InputURL          string         `db:"input_url"           json:"inputUrl"`
	SecondaryInputURL *string        `db:"secondary_input_url" json:"inputUrl2,omitempty"`
	Prompt            string         `db:"prompt"              json:"prompt,omitempty"`
	Settings          map[string]any `db:"settings"            json:"settings,omitempty"`
	Status            string         `db:"status"              json:"status"`
	ResultURL         *string        `db:"result_url"          json:"resultUrl,omitempty"`
	ErrorMessage      *string        `db:"error_message"       json:"errorMessage,omitempty"`
	ErrorCode         *string        `db:"error_code"          json:"errorCode,omitempty"`
	CallbackReceived  bool           `db:"callback_received"   json:"callbackReceived"`
	AttemptCount      int            `db:"attempt_count"       json:"attemptCount"`
	MaxAttempts       int            `db:"max_attempts"        json:"maxAttempts"`
	CreatedAt         time.Time      `db:"created_at"          json:"createdAt"`
	SubmittedAt       *time.Time     `db:"submitted_at"        json:"submittedAt,omitempty"`
	CallbackAt        *time.Time     `db:"callback_at"         json:"callbackAt,omitempty"`
	CompletedAt       *time.Time     `db:"completed_at"        json:"completedAt,omitempty"`
	UpdatedAt         time.Time      `db:"updated_at"          json:"updatedAt"`
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// Age returns how long ago the job was created relative to now.
func (j *Job) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}

// TaskIDValue returns the provider task id or "" when the job was never submitted.
func (j *Job) TaskIDValue() string {
	if j.TaskID == nil {
		return ""
	}
	return *j.TaskID
}
