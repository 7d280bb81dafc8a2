package audit

import (
	"time"

	"github.com/google/uuid"
)

// Status of the audited AI call
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusRetried Status = "retried"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRetried:
		return true
	}
	return false
}

// Request is one immutable row per individual AI call.
// Rows are append-only; they disappear only through cascading deletion of
// their parent post/brand.
type Request struct {
	ID uuid.UUID `db:"id"`

	// Traceability keys
	PostID  *int64     `db:"post_id"`
	UserID  *int64     `db:"user_id"`
	BrandID int64      `db:"brand_id"`
	JobID   *uuid.UUID `db:"job_id"`

	// What happened
	ActionCode string `db:"action_code"`
	Action     string `db:"action"`
	AgentType  string `db:"agent_type"`
	AgentLabel string `db:"agent_label"`

	Provider string `db:"provider"`
	Model    string `db:"model"`

	// Raw counts
	PromptTokens     int64   `db:"prompt_tokens"`
	CompletionTokens int64   `db:"completion_tokens"`
	TotalTokens      int64   `db:"total_tokens"`
	ImagesGenerated  int64   `db:"images_generated"`
	VideoSeconds     float64 `db:"video_seconds"`

	// Denormalized cost breakdown
	InputCostUSD  float64 `db:"input_cost_usd"`
	OutputCostUSD float64 `db:"output_cost_usd"`
	ImageCostUSD  float64 `db:"image_cost_usd"`
	VideoCostUSD  float64 `db:"video_cost_usd"`
	CostUSD       float64 `db:"cost_usd"`

	// Timing: requested <= started <= completed
	RequestedAt time.Time `db:"requested_at"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt time.Time `db:"completed_at"`
	DurationMs  int64     `db:"duration_ms"`

	Status       Status  `db:"status"`
	ErrorMessage *string `db:"error_message"`

	CreatedAt time.Time `db:"created_at"`
}

// Filter narrows audit queries. Zero/nil fields are ignored.
type Filter struct {
	ID         *uuid.UUID
	PostID     *int64
	UserID     *int64
	BrandID    *int64
	ActionCode string
	AgentType  string
	Provider   string
	Model      string
	Status     Status

	RequestedFrom *time.Time
	RequestedTo   *time.Time

	Limit  int
	Offset int
}
