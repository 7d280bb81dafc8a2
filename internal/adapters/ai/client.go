package ai

import "context"

// ProviderName identifies an AI provider.
type ProviderName string

const (
	ProviderNameOpenAI ProviderName = "openai"
	ProviderNameGoogle ProviderName = "google"
)

// Client defines the contract each AI provider implementation must satisfy.
type Client interface {
	Name() ProviderName

	// GenerateText sends a text completion request.
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)

	// GenerateImages produces one or more images for a prompt.
	GenerateImages(ctx context.Context, req ImageRequest) (*ImageResult, error)

	// GenerateVideo produces a short video clip for a prompt.
	GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error)
}

// TextRequest represents a text generation request.
type TextRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
}

// TextResult represents the outcome of a text generation call.
type TextResult struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
}

// ImageRequest represents an image generation request.
type ImageRequest struct {
	Model  string
	Prompt string
	Count  int
	Size   string
}

// GeneratedImage holds a single produced image.
type GeneratedImage struct {
	URL  string
	Data []byte
}

// ImageResult represents the outcome of an image generation call.
type ImageResult struct {
	Images       []GeneratedImage
	PromptTokens int64
}

// VideoRequest represents a video generation request.
type VideoRequest struct {
	Model           string
	Prompt          string
	DurationSeconds float64
}

// VideoResult represents the outcome of a video generation call.
type VideoResult struct {
	URL             string
	DurationSeconds float64
	PromptTokens    int64
}
