package audit

// Static lookup tables mapping machine codes to human-readable labels.
// Unknown codes fall back to the raw code so a new agent never breaks logging.

var actionDescriptions = map[string]string{
	"text_post_generation":     "Text post generation",
	"image_post_generation":    "Image post generation",
	"carousel_generation":      "Carousel generation",
	"slide_regeneration":       "Carousel slide regeneration",
	"caption_rewrite":          "Caption rewrite",
	"compliance_check":         "Compliance check",
	"brand_context_load":       "Brand context loading",
	"creative_direction":       "Creative direction",
	"content_analysis":         "Content analysis",
	"image_text_overlay":       "Image text overlay",
	"hashtag_suggestion":       "Hashtag suggestion",
	"video_clip_generation":    "Video clip generation",
	"post_idea_brainstorm":     "Post idea brainstorm",
	"scheduled_post_variation": "Scheduled post variation",
}

var agentLabels = map[string]string{
	"brand_context":      "Brand Context Agent",
	"creative_direction": "Creative Direction Agent",
	"analysis":           "Analysis Agent",
	"copywriting":        "Copywriting Agent",
	"compliance":         "Compliance Agent",
	"image_generation":   "Image Generation Agent",
	"text_overlay":       "Text Overlay Agent",
	"video_generation":   "Video Generation Agent",
}

// ActionDescription resolves an action code to its human-readable form,
// falling back to the raw code when unknown.
func ActionDescription(code string) string {
	if desc, ok := actionDescriptions[code]; ok {
		return desc
	}
	return code
}

// AgentLabel resolves an agent type to its display label,
// falling back to the raw type when unknown.
func AgentLabel(agentType string) string {
	if label, ok := agentLabels[agentType]; ok {
		return label
	}
	return agentType
}
