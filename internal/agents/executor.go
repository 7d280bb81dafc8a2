package agents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calliope/internal/domain/generation"
)

// ExecutionInput contains input parameters for agent execution
type ExecutionInput struct {
	JobID   uuid.UUID
	BrandID int64

	// Prompt is the user's request plus accumulated pipeline context.
	Prompt string

	// Context carries outputs of previous steps keyed by agent type.
	Context map[AgentType]string

	// ImageCount is the number of images to produce; 0 means one.
	ImageCount int

	// SlideIndex is set for carousel fan-out executions (1-based); 0 otherwise.
	SlideIndex int

	// VideoSeconds is the requested clip length for video agents.
	VideoSeconds float64
}

// ExecutionOutput contains the result of agent execution
type ExecutionOutput struct {
	AgentType AgentType

	// Content is the text produced by text agents.
	Content string

	// Artifacts produced by visual agents.
	Artifacts []generation.Artifact

	// Execution carries the usage accounting for this call.
	Execution generation.AgentExecution
}

// Executor runs a single agent step.
type Executor interface {
	Type() AgentType
	Execute(ctx context.Context, input ExecutionInput) (*ExecutionOutput, error)
}

// newExecution pre-fills the accounting record shared by all agent kinds.
func newExecution(kind generation.ExecutionKind, agentType AgentType, assignment ModelAssignment, startedAt time.Time) generation.AgentExecution {
	return generation.AgentExecution{
		Kind:      kind,
		AgentType: string(agentType),
		Provider:  string(assignment.Provider),
		Model:     assignment.Model,
		StartedAt: startedAt,
	}
}
