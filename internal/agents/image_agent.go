package agents

import (
	"context"
	"time"

	"calliope/internal/adapters/ai"
	"calliope/internal/domain/generation"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// ImageAgent executes image generation steps.
type ImageAgent struct {
	agentType  AgentType
	assignment ModelAssignment
	client     ai.Client
	log        *logger.Logger
}

// NewImageAgent creates an image agent bound to a provider client
func NewImageAgent(agentType AgentType, assignment ModelAssignment, client ai.Client) *ImageAgent {
	return &ImageAgent{
		agentType:  agentType,
		assignment: assignment,
		client:     client,
		log:        logger.Get().With("component", "image_agent", "agent", agentType),
	}
}

// Type returns the agent specialization
func (a *ImageAgent) Type() AgentType { return a.agentType }

// Execute produces one or more images and records the usage
func (a *ImageAgent) Execute(ctx context.Context, input ExecutionInput) (*ExecutionOutput, error) {
	if input.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt cannot be empty")
	}

	count := input.ImageCount
	if count <= 0 {
		count = 1
	}

	startedAt := time.Now().UTC()
	execution := newExecution(generation.ExecutionImage, a.agentType, a.assignment, startedAt)

	result, err := a.client.GenerateImages(ctx, ai.ImageRequest{
		Model:  a.assignment.Model,
		Prompt: buildPrompt(input),
		Count:  count,
	})

	execution.CompletedAt = time.Now().UTC()
	if err != nil {
		execution.Error = err.Error()
		return &ExecutionOutput{AgentType: a.agentType, Execution: execution},
			errors.Wrapf(errors.ErrAgentExecution, "%s: %v", a.agentType, err)
	}

	execution.Success = true
	execution.PromptTokens = result.PromptTokens
	execution.ImagesGenerated = int64(len(result.Images))

	artifacts := make([]generation.Artifact, 0, len(result.Images))
	for _, img := range result.Images {
		artifacts = append(artifacts, generation.Artifact{
			Kind:  "image",
			URL:   img.URL,
			Slide: input.SlideIndex,
		})
	}

	a.log.Debugw("Image agent finished", "images", len(result.Images))

	return &ExecutionOutput{
		AgentType: a.agentType,
		Artifacts: artifacts,
		Execution: execution,
	}, nil
}

var _ Executor = (*ImageAgent)(nil)
