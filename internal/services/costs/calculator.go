package costs

import (
	"context"
	"fmt"
	"strings"

	"calliope/internal/domain/pricing"
	"calliope/pkg/logger"
)

const tokensPerMillion = 1_000_000.0

// Usage holds the raw counts of one AI call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	ImagesGenerated  int64
	VideoSeconds     float64
}

// Breakdown decomposes a total cost into its four components and carries the
// raw counts they were derived from.
type Breakdown struct {
	InputCostUSD  float64 `json:"inputCostUsd"`
	OutputCostUSD float64 `json:"outputCostUsd"`
	ImageCostUSD  float64 `json:"imageCostUsd"`
	VideoCostUSD  float64 `json:"videoCostUsd"`

	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	ImagesGenerated  int64   `json:"imagesGenerated"`
	VideoSeconds     float64 `json:"videoSeconds"`
}

// Result is the priced outcome of one call (or an aggregate of several).
type Result struct {
	CostUSD   float64
	Breakdown Breakdown

	// Pricing used for the computation; nil when the pair was unconfigured
	// or when the result is an aggregate over heterogeneous calls.
	Pricing *pricing.Config

	// Warning is non-empty when pricing was missing; generation proceeds.
	Warning string
}

// Calculator prices heterogeneous AI calls. Missing pricing never fails a
// call: it yields a zero-cost result with a warning naming the pair.
type Calculator struct {
	pricing pricing.Provider
	log     *logger.Logger
}

// NewCalculator creates a calculator backed by the given pricing provider.
func NewCalculator(provider pricing.Provider) *Calculator {
	return &Calculator{
		pricing: provider,
		log:     logger.Get().With("component", "cost_calculator"),
	}
}

// Calculate prices one call. All component costs are computed without
// intermediate rounding; rounding happens only at persistence/display.
func (c *Calculator) Calculate(ctx context.Context, provider, model string, usage Usage) Result {
	breakdown := Breakdown{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		ImagesGenerated:  usage.ImagesGenerated,
		VideoSeconds:     usage.VideoSeconds,
	}

	cfg, err := c.pricing.GetPricing(ctx, provider, model)
	if err != nil {
		// Pricing lookup failures degrade to the unconfigured path; cost
		// accounting must never block a generation.
		c.log.Warnf("Pricing lookup failed for %s/%s: %v", provider, model, err)
		cfg = nil
	}

	if cfg == nil {
		return Result{
			Breakdown: breakdown,
			Warning:   fmt.Sprintf("no pricing configured for provider %q model %q; cost recorded as 0", provider, model),
		}
	}

	breakdown.InputCostUSD = float64(usage.PromptTokens) / tokensPerMillion * cfg.InputPerMillionTokens
	breakdown.OutputCostUSD = float64(usage.CompletionTokens) / tokensPerMillion * cfg.OutputPerMillionTokens
	breakdown.ImageCostUSD = float64(usage.ImagesGenerated) * cfg.ImagePerUnit
	breakdown.VideoCostUSD = usage.VideoSeconds * cfg.VideoPerSecond

	return Result{
		CostUSD:   breakdown.InputCostUSD + breakdown.OutputCostUSD + breakdown.ImageCostUSD + breakdown.VideoCostUSD,
		Breakdown: breakdown,
		Pricing:   cfg,
	}
}

// Aggregate sums results component-wise. The returned pricing is always nil
// because the inputs are heterogeneous; warnings are joined with "; ".
// Sums are commutative, so the aggregate is invariant under permutation of
// the input list.
func (c *Calculator) Aggregate(results []Result) Result {
	var agg Result
	var warnings []string

	for _, r := range results {
		agg.CostUSD += r.CostUSD

		agg.Breakdown.InputCostUSD += r.Breakdown.InputCostUSD
		agg.Breakdown.OutputCostUSD += r.Breakdown.OutputCostUSD
		agg.Breakdown.ImageCostUSD += r.Breakdown.ImageCostUSD
		agg.Breakdown.VideoCostUSD += r.Breakdown.VideoCostUSD

		agg.Breakdown.PromptTokens += r.Breakdown.PromptTokens
		agg.Breakdown.CompletionTokens += r.Breakdown.CompletionTokens
		agg.Breakdown.ImagesGenerated += r.Breakdown.ImagesGenerated
		agg.Breakdown.VideoSeconds += r.Breakdown.VideoSeconds

		if r.Warning != "" {
			warnings = append(warnings, r.Warning)
		}
	}

	agg.Warning = strings.Join(warnings, "; ")
	return agg
}
