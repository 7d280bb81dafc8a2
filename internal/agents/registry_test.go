package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calliope/internal/adapters/ai"
	"calliope/internal/domain/generation"
	"calliope/pkg/errors"
)

type fakeClient struct {
	name ai.ProviderName
}

func (f *fakeClient) Name() ai.ProviderName { return f.name }
func (f *fakeClient) GenerateText(_ context.Context, req ai.TextRequest) (*ai.TextResult, error) {
	return &ai.TextResult{Content: "generated: " + req.Prompt, PromptTokens: 100, CompletionTokens: 50}, nil
}
func (f *fakeClient) GenerateImages(_ context.Context, req ai.ImageRequest) (*ai.ImageResult, error) {
	images := make([]ai.GeneratedImage, req.Count)
	for i := range images {
		images[i] = ai.GeneratedImage{URL: "https://cdn.example.com/img.png"}
	}
	return &ai.ImageResult{Images: images}, nil
}
func (f *fakeClient) GenerateVideo(_ context.Context, req ai.VideoRequest) (*ai.VideoResult, error) {
	return &ai.VideoResult{URL: "https://cdn.example.com/clip.mp4", DurationSeconds: req.DurationSeconds}, nil
}

func newProviders(t *testing.T) *ai.Registry {
	t.Helper()
	providers := ai.NewRegistry()
	require.NoError(t, providers.Register(&fakeClient{name: ai.ProviderNameOpenAI}))
	require.NoError(t, providers.Register(&fakeClient{name: ai.ProviderNameGoogle}))
	return providers
}

func TestBuildRegistryWiresAllAgents(t *testing.T) {
	registry, err := BuildRegistry(newProviders(t))
	require.NoError(t, err)

	for agentType := range DefaultAssignments {
		executor, err := registry.Get(agentType)
		require.NoError(t, err, "agent %s", agentType)
		assert.Equal(t, agentType, executor.Type())
	}
}

func TestBuildRegistrySkipsUnconfiguredProviders(t *testing.T) {
	providers := ai.NewRegistry()
	require.NoError(t, providers.Register(&fakeClient{name: ai.ProviderNameOpenAI}))

	registry, err := BuildRegistry(providers)
	require.NoError(t, err)

	// OpenAI agents present, Google agents absent
	_, err = registry.Get(AgentCopywriting)
	require.NoError(t, err)

	_, err = registry.Get(AgentImageGeneration)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownAgent))
}

func TestForStepResolvesMappedAgent(t *testing.T) {
	registry, err := BuildRegistry(newProviders(t))
	require.NoError(t, err)

	executor, err := registry.ForStep(generation.StepCopywriting)
	require.NoError(t, err)
	assert.Equal(t, AgentCopywriting, executor.Type())

	_, err = registry.ForStep(generation.Step("unknown_step"))
	require.Error(t, err)
}

func TestTextAgentRecordsUsage(t *testing.T) {
	client := &fakeClient{name: ai.ProviderNameOpenAI}
	agent := NewTextAgent(AgentCopywriting, DefaultAssignments[AgentCopywriting], client)

	out, err := agent.Execute(context.Background(), ExecutionInput{
		Prompt: "write a post about espresso",
		Context: map[AgentType]string{
			AgentBrandContext: "premium coffee roaster, playful voice",
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out.Content, "espresso")
	assert.True(t, out.Execution.Success)
	assert.Equal(t, int64(100), out.Execution.PromptTokens)
	assert.Equal(t, int64(50), out.Execution.CompletionTokens)
	require.NoError(t, out.Execution.Validate())
}

func TestImageAgentCountsImages(t *testing.T) {
	client := &fakeClient{name: ai.ProviderNameGoogle}
	agent := NewImageAgent(AgentImageGeneration, DefaultAssignments[AgentImageGeneration], client)

	out, err := agent.Execute(context.Background(), ExecutionInput{
		Prompt:     "latte art closeup",
		ImageCount: 3,
		SlideIndex: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), out.Execution.ImagesGenerated)
	assert.Zero(t, out.Execution.VideoSeconds)
	assert.Len(t, out.Artifacts, 3)
	assert.Equal(t, 2, out.Artifacts[0].Slide)
	require.NoError(t, out.Execution.Validate())
}

func TestVideoAgentReportsSecondsOnly(t *testing.T) {
	client := &fakeClient{name: ai.ProviderNameGoogle}
	agent := NewVideoAgent(AgentVideoGeneration, DefaultAssignments[AgentVideoGeneration], client)

	out, err := agent.Execute(context.Background(), ExecutionInput{
		Prompt:       "slow pour over steaming cup",
		VideoSeconds: 6,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(6), out.Execution.VideoSeconds)
	assert.Zero(t, out.Execution.ImagesGenerated)
	require.NoError(t, out.Execution.Validate())
}

func TestEmptyPromptRejected(t *testing.T) {
	client := &fakeClient{name: ai.ProviderNameOpenAI}
	agent := NewTextAgent(AgentAnalysis, DefaultAssignments[AgentAnalysis], client)

	_, err := agent.Execute(context.Background(), ExecutionInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
