package agents

import (
	"context"
	"time"

	"calliope/internal/adapters/ai"
	"calliope/internal/domain/generation"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

const defaultClipSeconds = 8

// VideoAgent executes video clip generation steps.
type VideoAgent struct {
	agentType  AgentType
	assignment ModelAssignment
	client     ai.Client
	log        *logger.Logger
}

// NewVideoAgent creates a video agent bound to a provider client
func NewVideoAgent(agentType AgentType, assignment ModelAssignment, client ai.Client) *VideoAgent {
	return &VideoAgent{
		agentType:  agentType,
		assignment: assignment,
		client:     client,
		log:        logger.Get().With("component", "video_agent", "agent", agentType),
	}
}

// Type returns the agent specialization
func (a *VideoAgent) Type() AgentType { return a.agentType }

// Execute produces a video clip and records the usage
func (a *VideoAgent) Execute(ctx context.Context, input ExecutionInput) (*ExecutionOutput, error) {
	if input.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt cannot be empty")
	}

	seconds := input.VideoSeconds
	if seconds <= 0 {
		seconds = defaultClipSeconds
	}

	startedAt := time.Now().UTC()
	execution := newExecution(generation.ExecutionVideo, a.agentType, a.assignment, startedAt)

	result, err := a.client.GenerateVideo(ctx, ai.VideoRequest{
		Model:           a.assignment.Model,
		Prompt:          buildPrompt(input),
		DurationSeconds: seconds,
	})

	execution.CompletedAt = time.Now().UTC()
	if err != nil {
		execution.Error = err.Error()
		return &ExecutionOutput{AgentType: a.agentType, Execution: execution},
			errors.Wrapf(errors.ErrAgentExecution, "%s: %v", a.agentType, err)
	}

	execution.Success = true
	execution.PromptTokens = result.PromptTokens
	execution.VideoSeconds = result.DurationSeconds

	return &ExecutionOutput{
		AgentType: a.agentType,
		Artifacts: []generation.Artifact{{Kind: "video", URL: result.URL}},
		Execution: execution,
	}, nil
}

var _ Executor = (*VideoAgent)(nil)
