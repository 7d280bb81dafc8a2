package generation

import (
	"time"

	"github.com/google/uuid"

	"calliope/pkg/errors"
)

// ExecutionKind tags the closed variant of per-agent execution results.
type ExecutionKind string

const (
	ExecutionText  ExecutionKind = "text"
	ExecutionImage ExecutionKind = "image"
	ExecutionVideo ExecutionKind = "video"
)

// AgentExecution is the per-agent execution result optionally attached to a
// progress event. It is a closed tagged variant: required fields are validated
// at ingestion, not accessed ad hoc later.
type AgentExecution struct {
	Kind ExecutionKind `json:"kind"`

	AgentType string `json:"agentType"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`

	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	ImagesGenerated  int64   `json:"imagesGenerated,omitempty"`
	VideoSeconds     float64 `json:"videoSeconds,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Validate enforces the variant's invariants at the point of ingestion.
func (e *AgentExecution) Validate() error {
	switch e.Kind {
	case ExecutionText, ExecutionImage, ExecutionVideo:
	default:
		return errors.NewValidationError("kind", "unknown execution kind", e.Kind)
	}
	if e.AgentType == "" {
		return errors.NewValidationError("agentType", "required", e.AgentType)
	}
	if e.Provider == "" || e.Model == "" {
		return errors.NewValidationError("provider/model", "required", e.Provider+"/"+e.Model)
	}
	if e.CompletedAt.Before(e.StartedAt) {
		return errors.NewValidationError("completedAt", "before startedAt", e.CompletedAt)
	}
	// A single call produces either images or video, never both.
	if e.ImagesGenerated > 0 && e.VideoSeconds > 0 {
		return errors.NewValidationError("imagesGenerated", "execution reports both images and video", e.ImagesGenerated)
	}
	switch e.Kind {
	case ExecutionImage:
		if e.VideoSeconds > 0 {
			return errors.NewValidationError("videoSeconds", "image execution reports video output", e.VideoSeconds)
		}
	case ExecutionVideo:
		if e.ImagesGenerated > 0 {
			return errors.NewValidationError("imagesGenerated", "video execution reports image output", e.ImagesGenerated)
		}
	}
	return nil
}

// ProgressEvent is one snapshot of a running job. Only the latest snapshot is
// durable; the full event stream exists only on the live channel.
type ProgressEvent struct {
	JobID uuid.UUID `json:"jobId"`

	Status Status `json:"status"`

	Step       Step   `json:"step"`
	StepIndex  int    `json:"stepIndex"`
	TotalSteps int    `json:"totalSteps"`
	Message    string `json:"message"`

	// Sub-step counters for fan-out steps ("slide 2 of 4"); nil otherwise.
	SubCurrent *int `json:"subCurrent,omitempty"`
	SubTotal   *int `json:"subTotal,omitempty"`

	// Execution result of the step that just finished, when applicable.
	Execution *AgentExecution `json:"execution,omitempty"`

	Error string `json:"error,omitempty"`

	EmittedAt time.Time `json:"emittedAt"`
}

// Terminal reports whether this event closes the job's stream.
func (e *ProgressEvent) Terminal() bool {
	return e.Status.Terminal()
}
