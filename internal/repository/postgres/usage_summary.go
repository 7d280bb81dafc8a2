package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calliope/internal/domain/usage"
)

// Compile-time check
var _ usage.Repository = (*UsageSummaryRepository)(nil)

// UsageSummaryRepository implements usage.Repository using sqlx
type UsageSummaryRepository struct {
	db DBTX
}

// NewUsageSummaryRepository creates a new usage summary repository
func NewUsageSummaryRepository(db DBTX) *UsageSummaryRepository {
	return &UsageSummaryRepository{db: db}
}

// Apply folds one record into the summary row for key. The upsert is a single
// statement, so concurrent calls for the same key serialize inside Postgres
// and no increments are lost. The unique index uses NULLS NOT DISTINCT so
// NULL user_id and NULL period_start still collapse to one row.
func (r *UsageSummaryRepository) Apply(ctx context.Context, key usage.Key, rec usage.Record) error {
	videos := int64(0)
	if rec.ProducedVideo() {
		videos = 1
	}

	query := `
		INSERT INTO usage_summaries (
			id, user_id, brand_id, period, period_start, provider, model,
			request_count, total_prompt_tokens, total_completion_tokens, total_tokens,
			images_generated, videos_generated, video_seconds_generated,
			estimated_cost_usd, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			1, $8, $9, $10,
			$11, $12, $13,
			$14, NOW(), NOW()
		)
		ON CONFLICT (user_id, brand_id, period, period_start, provider, model) DO UPDATE SET
			request_count = usage_summaries.request_count + 1,
			total_prompt_tokens = usage_summaries.total_prompt_tokens + $8,
			total_completion_tokens = usage_summaries.total_completion_tokens + $9,
			total_tokens = usage_summaries.total_tokens + $10,
			images_generated = usage_summaries.images_generated + $11,
			videos_generated = usage_summaries.videos_generated + $12,
			video_seconds_generated = usage_summaries.video_seconds_generated + $13,
			estimated_cost_usd = usage_summaries.estimated_cost_usd + $14,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New(), key.UserID, key.BrandID, key.Period, key.PeriodStart, key.Provider, key.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens(),
		rec.ImagesGenerated, videos, rec.VideoSeconds,
		rec.CostUSD,
	)

	return err
}

// ListByBrand returns summaries for a brand, newest update first
func (r *UsageSummaryRepository) ListByBrand(ctx context.Context, brandID int64, period *usage.Period) ([]usage.Summary, error) {
	var summaries []usage.Summary

	query := `
		SELECT * FROM usage_summaries
		WHERE brand_id = $1 AND ($2::text IS NULL OR period = $2)
		ORDER BY updated_at DESC`

	err := r.db.SelectContext(ctx, &summaries, query, brandID, period)
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// ListByUser returns summaries for a user, newest update first
func (r *UsageSummaryRepository) ListByUser(ctx context.Context, userID int64, period *usage.Period) ([]usage.Summary, error) {
	var summaries []usage.Summary

	query := `
		SELECT * FROM usage_summaries
		WHERE user_id = $1 AND ($2::text IS NULL OR period = $2)
		ORDER BY updated_at DESC`

	err := r.db.SelectContext(ctx, &summaries, query, userID, period)
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// TotalCostByBrand sums estimated cost over the brand's total-period rows
func (r *UsageSummaryRepository) TotalCostByBrand(ctx context.Context, brandID int64) (float64, error) {
	var cost float64

	query := `
		SELECT COALESCE(SUM(estimated_cost_usd), 0) FROM usage_summaries
		WHERE brand_id = $1 AND period = 'total'`

	err := r.db.GetContext(ctx, &cost, query, brandID)
	if err != nil {
		return 0, err
	}

	return cost, nil
}

// MonthCostByBrand sums estimated cost over the brand's monthly rows for the month
func (r *UsageSummaryRepository) MonthCostByBrand(ctx context.Context, brandID int64, monthStart time.Time) (float64, error) {
	var cost float64

	query := `
		SELECT COALESCE(SUM(estimated_cost_usd), 0) FROM usage_summaries
		WHERE brand_id = $1 AND period = 'monthly' AND period_start = $2`

	err := r.db.GetContext(ctx, &cost, query, brandID, monthStart)
	if err != nil {
		return 0, err
	}

	return cost, nil
}
