package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// OpenAIClient implements generation using the official OpenAI Go SDK
type OpenAIClient struct {
	client  openai.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     *logger.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey string, reqPerMinute float64, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if reqPerMinute <= 0 {
		reqPerMinute = 300
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAIClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(reqPerMinute/60.0), int(reqPerMinute/10)+1),
		timeout: timeout,
		log:     logger.Get().With("component", "openai_client"),
	}, nil
}

// Name returns provider name
func (c *OpenAIClient) Name() ProviderName { return ProviderNameOpenAI }

// GenerateText sends a chat completion request
func (c *OpenAIClient) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if req.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt cannot be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion failed")
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrAgentExecution, "openai returned no choices")
	}

	return &TextResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// GenerateImages produces images via the Images API
func (c *OpenAIClient) GenerateImages(ctx context.Context, req ImageRequest) (*ImageResult, error) {
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

	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.Model),
		N:      openai.Int(int64(req.Count)),
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai image generation failed")
	}

	result := &ImageResult{Images: make([]GeneratedImage, 0, len(resp.Data))}
	for _, img := range resp.Data {
		result.Images = append(result.Images, GeneratedImage{
			URL:  img.URL,
			Data: []byte(img.B64JSON),
		})
	}
	return result, nil
}

// GenerateVideo is not supported by the OpenAI adapter
func (c *OpenAIClient) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	return nil, errors.Wrap(errors.ErrInvalidInput, "openai adapter does not support video generation")
}

var _ Client = (*OpenAIClient)(nil)
