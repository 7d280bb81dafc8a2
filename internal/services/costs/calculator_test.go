package costs

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calliope/internal/domain/pricing"
)

const costTolerance = 1e-9

func TestCalculator_Calculate(t *testing.T) {
	provider := pricing.NewStaticProvider(
		pricing.Config{Provider: "openai", Model: "gpt-4o", InputPerMillionTokens: 5, OutputPerMillionTokens: 15},
		pricing.Config{Provider: "google", Model: "imagen-4", ImagePerUnit: 0.04},
		pricing.Config{Provider: "google", Model: "veo-3", VideoPerSecond: 0.4},
	)
	calc := NewCalculator(provider)
	ctx := context.Background()

	t.Run("prices text tokens per million", func(t *testing.T) {
		res := calc.Calculate(ctx, "openai", "gpt-4o", Usage{
			PromptTokens:     1_000_000,
			CompletionTokens: 500_000,
		})

		require.NotNil(t, res.Pricing)
		assert.Empty(t, res.Warning)
		assert.InDelta(t, 5.0, res.Breakdown.InputCostUSD, costTolerance)
		assert.InDelta(t, 7.5, res.Breakdown.OutputCostUSD, costTolerance)
		assert.InDelta(t, 12.5, res.CostUSD, costTolerance)
	})

	t.Run("prices images per unit", func(t *testing.T) {
		res := calc.Calculate(ctx, "google", "imagen-4", Usage{ImagesGenerated: 4})

		assert.InDelta(t, 0.16, res.Breakdown.ImageCostUSD, costTolerance)
		assert.InDelta(t, 0.16, res.CostUSD, costTolerance)
		assert.Zero(t, res.Breakdown.InputCostUSD)
	})

	t.Run("prices video per second", func(t *testing.T) {
		res := calc.Calculate(ctx, "google", "veo-3", Usage{VideoSeconds: 8})

		assert.InDelta(t, 3.2, res.Breakdown.VideoCostUSD, costTolerance)
		assert.InDelta(t, 3.2, res.CostUSD, costTolerance)
	})

	t.Run("unconfigured pair yields zero cost and a warning, never an error", func(t *testing.T) {
		res := calc.Calculate(ctx, "anthropic", "claude-sonnet-4", Usage{
			PromptTokens:     12_345,
			CompletionTokens: 678,
		})

		assert.Nil(t, res.Pricing)
		assert.Zero(t, res.CostUSD)
		require.NotEmpty(t, res.Warning)
		assert.Contains(t, res.Warning, "anthropic")
		assert.Contains(t, res.Warning, "claude-sonnet-4")

		// Raw counts survive even without pricing
		assert.Equal(t, int64(12_345), res.Breakdown.PromptTokens)
		assert.Equal(t, int64(678), res.Breakdown.CompletionTokens)
	})

	t.Run("total equals sum of components", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 200; i++ {
			res := calc.Calculate(ctx, "openai", "gpt-4o", Usage{
				PromptTokens:     rng.Int63n(5_000_000),
				CompletionTokens: rng.Int63n(5_000_000),
				ImagesGenerated:  rng.Int63n(10),
				VideoSeconds:     rng.Float64() * 60,
			})

			sum := res.Breakdown.InputCostUSD + res.Breakdown.OutputCostUSD +
				res.Breakdown.ImageCostUSD + res.Breakdown.VideoCostUSD
			assert.InDelta(t, sum, res.CostUSD, costTolerance)
		}
	})
}

func TestCalculator_Aggregate(t *testing.T) {
	provider := pricing.NewStaticProvider(
		pricing.Config{Provider: "openai", Model: "gpt-4o", InputPerMillionTokens: 5, OutputPerMillionTokens: 15},
		pricing.Config{Provider: "google", Model: "imagen-4", ImagePerUnit: 0.04},
	)
	calc := NewCalculator(provider)
	ctx := context.Background()

	results := []Result{
		calc.Calculate(ctx, "openai", "gpt-4o", Usage{PromptTokens: 200_000, CompletionTokens: 80_000}),
		calc.Calculate(ctx, "google", "imagen-4", Usage{ImagesGenerated: 2}),
		calc.Calculate(ctx, "mystery", "model-x", Usage{PromptTokens: 999}),
		calc.Calculate(ctx, "mystery", "model-y", Usage{CompletionTokens: 111}),
	}

	t.Run("sums component-wise with nil pricing", func(t *testing.T) {
		agg := calc.Aggregate(results)

		assert.Nil(t, agg.Pricing)
		assert.InDelta(t, 1.0+1.2+0.08, agg.CostUSD, costTolerance)
		assert.Equal(t, int64(200_000+999), agg.Breakdown.PromptTokens)
		assert.Equal(t, int64(80_000+111), agg.Breakdown.CompletionTokens)
		assert.Equal(t, int64(2), agg.Breakdown.ImagesGenerated)
	})

	t.Run("concatenates warnings with semicolons", func(t *testing.T) {
		agg := calc.Aggregate(results)

		assert.Contains(t, agg.Warning, "model-x")
		assert.Contains(t, agg.Warning, "model-y")
		assert.Contains(t, agg.Warning, "; ")
	})

	t.Run("invariant under permutation", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		want := calc.Aggregate(results)

		for i := 0; i < 50; i++ {
			shuffled := make([]Result, len(results))
			copy(shuffled, results)
			rng.Shuffle(len(shuffled), func(a, b int) {
				shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
			})

			got := calc.Aggregate(shuffled)
			assert.InDelta(t, want.CostUSD, got.CostUSD, costTolerance)
			assert.Equal(t, want.Breakdown.PromptTokens, got.Breakdown.PromptTokens)
			assert.Equal(t, want.Breakdown.ImagesGenerated, got.Breakdown.ImagesGenerated)
		}
	})

	t.Run("empty input aggregates to zero", func(t *testing.T) {
		agg := calc.Aggregate(nil)
		assert.Zero(t, agg.CostUSD)
		assert.Empty(t, agg.Warning)
	})
}

func TestRoundUSD(t *testing.T) {
	assert.InDelta(t, 0.000123, RoundUSD(0.000123456), 1e-12)
	assert.InDelta(t, 12.5, RoundUSD(12.5), 1e-12)
	assert.False(t, math.Signbit(RoundUSD(0)))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$12.5", FormatUSD(12.5))
	assert.Equal(t, "$0.000123", FormatUSD(0.000123456))
	assert.Equal(t, "$0", FormatUSD(0))
}
