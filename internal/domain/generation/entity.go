package generation

import (
	"time"

	"github.com/google/uuid"
)

// Status of a generation job
type Status string

const (
	StatusStarted    Status = "started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Step is one agent stage of a generation pipeline
type Step string

const (
	StepBrandContext      Step = "brand_context"
	StepCreativeDirection Step = "creative_direction"
	StepAnalysis          Step = "analysis"
	StepCopywriting       Step = "copywriting"
	StepComplianceCheck   Step = "compliance_check"
	StepImageGeneration   Step = "image_generation"
	StepTextOverlay       Step = "text_overlay"
)

// PipelineKind selects which ordered step set a job runs
type PipelineKind string

const (
	PipelineTextPost  PipelineKind = "text_post"
	PipelineImagePost PipelineKind = "image_post"
	PipelineCarousel  PipelineKind = "carousel"
)

// Steps returns the ordered step set for the pipeline kind.
func (k PipelineKind) Steps() []Step {
	switch k {
	case PipelineTextPost:
		return []Step{StepBrandContext, StepCreativeDirection, StepAnalysis, StepCopywriting, StepComplianceCheck}
	case PipelineImagePost:
		return []Step{StepBrandContext, StepCreativeDirection, StepAnalysis, StepCopywriting, StepComplianceCheck, StepImageGeneration, StepTextOverlay}
	case PipelineCarousel:
		return []Step{StepBrandContext, StepCreativeDirection, StepAnalysis, StepCopywriting, StepComplianceCheck, StepImageGeneration, StepTextOverlay}
	}
	return nil
}

// Valid reports whether k is a known pipeline kind.
func (k PipelineKind) Valid() bool {
	return len(k.Steps()) > 0
}

// Job tracks one end-to-end multi-agent generation.
// Mutable only by the orchestrator while running; immutable once terminal.
type Job struct {
	ID uuid.UUID `db:"id"`

	UserID  *int64 `db:"user_id"`
	BrandID int64  `db:"brand_id"`
	PostID  *int64 `db:"post_id"`

	Pipeline PipelineKind `db:"pipeline"`
	Prompt   string       `db:"prompt"`

	// SlideCount is the carousel fan-out width; 0 for non-carousel pipelines.
	SlideCount int `db:"slide_count"`

	Status      Status `db:"status"`
	CurrentStep Step   `db:"current_step"`

	// LastProgress holds the single latest snapshot as an opaque JSON blob.
	// Serialization happens only at this persistence boundary; business logic
	// works with the typed ProgressEvent.
	LastProgress []byte `db:"last_progress"`

	// Running totals across constituent agent executions
	TotalTokens     int64   `db:"total_tokens"`
	TotalCostUSD    float64 `db:"total_cost_usd"`
	TotalImages     int64   `db:"total_images"`
	ExecutionCount  int64   `db:"execution_count"`

	// Final artifacts on completion (JSON blob, persistence boundary only)
	Artifacts []byte `db:"artifacts"`

	// Human-readable failure message, distinct from any stack trace
	ErrorMessage *string `db:"error_message"`

	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Artifact is one produced output of a completed job.
type Artifact struct {
	Kind string `json:"kind"` // caption, image, slide
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Slide int   `json:"slide,omitempty"`
}
