package agents

// System prompts per agent type. The orchestrator passes brand and pipeline
// context through the user prompt; these set the agent's role only.
var systemPrompts = map[AgentType]string{
	AgentBrandContext: "You are a brand strategist. Distill the brand's voice, " +
		"audience, and content pillars into a compact context brief for downstream agents.",

	AgentCreativeDirection: "You are a creative director for social media. Propose a " +
		"concrete creative angle, hook, and visual direction for the requested post.",

	AgentAnalysis: "You are a content performance analyst. Assess the proposed " +
		"direction against the brand's audience and suggest concrete improvements.",

	AgentCopywriting: "You are a senior social media copywriter. Write the final " +
		"post copy: hook, body, call to action, and hashtags. Match the brand voice exactly.",

	AgentCompliance: "You are a content compliance reviewer. Check the copy for " +
		"policy violations, unverifiable claims, and restricted topics. Reply with " +
		"APPROVED or a list of required changes.",

	AgentImageGeneration: "Generate a social media image matching the creative direction.",

	AgentTextOverlay: "Render the given caption text onto the image as a clean overlay.",

	AgentVideoGeneration: "Generate a short social media video clip matching the creative direction.",
}

// SystemPrompt returns the role prompt for an agent type, empty when the
// agent is not prompt-driven.
func SystemPrompt(agentType AgentType) string {
	return systemPrompts[agentType]
}
