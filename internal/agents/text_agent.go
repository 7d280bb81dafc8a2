package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calliope/internal/adapters/ai"
	"calliope/internal/domain/generation"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// contextOrder fixes the order prior step outputs are appended to prompts.
var contextOrder = []AgentType{
	AgentBrandContext,
	AgentCreativeDirection,
	AgentAnalysis,
	AgentCopywriting,
	AgentCompliance,
}

// TextAgent executes prompt-driven text steps against an AI provider.
type TextAgent struct {
	agentType  AgentType
	assignment ModelAssignment
	client     ai.Client
	log        *logger.Logger
}

// NewTextAgent creates a text agent bound to a provider client
func NewTextAgent(agentType AgentType, assignment ModelAssignment, client ai.Client) *TextAgent {
	return &TextAgent{
		agentType:  agentType,
		assignment: assignment,
		client:     client,
		log:        logger.Get().With("component", "text_agent", "agent", agentType),
	}
}

// Type returns the agent specialization
func (a *TextAgent) Type() AgentType { return a.agentType }

// Execute runs one text completion and records its usage
func (a *TextAgent) Execute(ctx context.Context, input ExecutionInput) (*ExecutionOutput, error) {
	if input.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt cannot be empty")
	}

	startedAt := time.Now().UTC()
	execution := newExecution(generation.ExecutionText, a.agentType, a.assignment, startedAt)

	result, err := a.client.GenerateText(ctx, ai.TextRequest{
		Model:        a.assignment.Model,
		SystemPrompt: SystemPrompt(a.agentType),
		Prompt:       buildPrompt(input),
	})

	execution.CompletedAt = time.Now().UTC()
	if err != nil {
		execution.Error = err.Error()
		return &ExecutionOutput{AgentType: a.agentType, Execution: execution},
			errors.Wrapf(errors.ErrAgentExecution, "%s: %v", a.agentType, err)
	}

	execution.Success = true
	execution.PromptTokens = result.PromptTokens
	execution.CompletionTokens = result.CompletionTokens

	a.log.Debugw("Text agent finished",
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens)

	return &ExecutionOutput{
		AgentType: a.agentType,
		Content:   result.Content,
		Execution: execution,
	}, nil
}

// buildPrompt appends prior step outputs to the user prompt in pipeline order.
func buildPrompt(input ExecutionInput) string {
	var sb strings.Builder
	sb.WriteString(input.Prompt)

	for _, agentType := range contextOrder {
		out, ok := input.Context[agentType]
		if !ok || out == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n\n--- %s output ---\n%s", agentType, out)
	}

	if input.SlideIndex > 0 {
		fmt.Fprintf(&sb, "\n\nThis is slide %d of the carousel.", input.SlideIndex)
	}

	return sb.String()
}

var _ Executor = (*TextAgent)(nil)
