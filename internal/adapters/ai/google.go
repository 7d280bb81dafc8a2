package ai

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

const videoPollInterval = 10 * time.Second

// GoogleClient implements generation using the Google GenAI SDK
type GoogleClient struct {
	client  *genai.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     *logger.Logger
}

// NewGoogleClient creates a new Google GenAI client
func NewGoogleClient(ctx context.Context, apiKey string, reqPerMinute float64, timeout time.Duration) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "google API key is required")
	}
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	if reqPerMinute <= 0 {
		reqPerMinute = 300
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	return &GoogleClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(reqPerMinute/60.0), int(reqPerMinute/10)+1),
		timeout: timeout,
		log:     logger.Get().With("component", "google_client"),
	}, nil
}

// Name returns provider name
func (c *GoogleClient) Name() ProviderName { return ProviderNameGoogle }

// GenerateText sends a content generation request to Gemini
func (c *GoogleClient) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if req.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt cannot be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "gemini content generation failed")
	}

	result := &TextResult{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// GenerateImages produces images via Imagen
func (c *GoogleClient) GenerateImages(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if req.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt cannot be empty")
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateImages(ctx, req.Model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(req.Count),
	})
	if err != nil {
		return nil, errors.Wrap(err, "imagen generation failed")
	}

	result := &ImageResult{Images: make([]GeneratedImage, 0, len(resp.GeneratedImages))}
	for _, img := range resp.GeneratedImages {
		if img.Image == nil {
			continue
		}
		result.Images = append(result.Images, GeneratedImage{
			URL:  img.Image.GCSURI,
			Data: img.Image.ImageBytes,
		})
	}
	return result, nil
}

// GenerateVideo produces a video via Veo, polling the long-running operation
func (c *GoogleClient) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	if req.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt cannot be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	op, err := c.client.Models.GenerateVideos(ctx, req.Model, req.Prompt, nil, &genai.GenerateVideosConfig{})
	if err != nil {
		return nil, errors.Wrap(err, "veo generation failed")
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "veo generation timed out")
		case <-time.After(videoPollInterval):
		}

		op, err = c.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, errors.Wrap(err, "poll veo operation")
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, errors.Wrap(errors.ErrAgentExecution, "veo returned no videos")
	}

	video := op.Response.GeneratedVideos[0]
	result := &VideoResult{DurationSeconds: req.DurationSeconds}
	if video.Video != nil {
		result.URL = video.Video.URI
	}
	return result, nil
}

var _ Client = (*GoogleClient)(nil)
