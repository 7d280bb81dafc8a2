package agents

import (
	"calliope/internal/adapters/ai"
	"calliope/internal/domain/generation"
)

// AgentType enumerates supported agent specializations.
type AgentType string

const (
	AgentBrandContext      AgentType = "brand_context"
	AgentCreativeDirection AgentType = "creative_direction"
	AgentAnalysis          AgentType = "analysis"
	AgentCopywriting       AgentType = "copywriting"
	AgentCompliance        AgentType = "compliance"
	AgentImageGeneration   AgentType = "image_generation"
	AgentTextOverlay       AgentType = "text_overlay"
	AgentVideoGeneration   AgentType = "video_generation"
)

// StepAgent maps pipeline steps to the agent that runs them.
var StepAgent = map[generation.Step]AgentType{
	generation.StepBrandContext:      AgentBrandContext,
	generation.StepCreativeDirection: AgentCreativeDirection,
	generation.StepAnalysis:          AgentAnalysis,
	generation.StepCopywriting:       AgentCopywriting,
	generation.StepComplianceCheck:   AgentCompliance,
	generation.StepImageGeneration:   AgentImageGeneration,
	generation.StepTextOverlay:       AgentTextOverlay,
}

// ActionCode maps pipeline kinds to audit action codes.
var ActionCode = map[generation.PipelineKind]string{
	generation.PipelineTextPost:  "text_post_generation",
	generation.PipelineImagePost: "image_post_generation",
	generation.PipelineCarousel:  "carousel_generation",
}

// ModelAssignment binds an agent to a provider and model.
type ModelAssignment struct {
	Provider ai.ProviderName
	Model    string
}

// DefaultAssignments selects the provider and model each agent runs on.
// Text-heavy agents run on OpenAI; visual agents run on Google.
var DefaultAssignments = map[AgentType]ModelAssignment{
	AgentBrandContext:      {Provider: ai.ProviderNameOpenAI, Model: "gpt-4o-mini"},
	AgentCreativeDirection: {Provider: ai.ProviderNameOpenAI, Model: "gpt-4o"},
	AgentAnalysis:          {Provider: ai.ProviderNameGoogle, Model: "gemini-2.5-flash"},
	AgentCopywriting:       {Provider: ai.ProviderNameOpenAI, Model: "gpt-4o"},
	AgentCompliance:        {Provider: ai.ProviderNameOpenAI, Model: "gpt-4o-mini"},
	AgentImageGeneration:   {Provider: ai.ProviderNameGoogle, Model: "imagen-4"},
	AgentTextOverlay:       {Provider: ai.ProviderNameOpenAI, Model: "gpt-image-1"},
	AgentVideoGeneration:   {Provider: ai.ProviderNameGoogle, Model: "veo-3"},
}
