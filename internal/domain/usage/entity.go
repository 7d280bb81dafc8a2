package usage

import (
	"time"

	"github.com/google/uuid"
)

// Period is the aggregation granularity for usage summaries
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
	PeriodTotal   Period = "total"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodMonthly, PeriodTotal:
		return true
	}
	return false
}

// Record is the unit of work fed into the aggregator: one completed AI call.
// It is consumed within a single AddUsage call and never persisted directly.
type Record struct {
	UserID  *int64
	BrandID int64

	Provider string
	Model    string

	PromptTokens     int64
	CompletionTokens int64
	ImagesGenerated  int64
	VideoSeconds     float64

	CostUSD float64

	// OccurredAt is the completion time of the call; buckets are derived from
	// its UTC calendar date. Zero means time.Now().
	OccurredAt time.Time
}

// TotalTokens returns prompt + completion tokens.
func (r Record) TotalTokens() int64 {
	return r.PromptTokens + r.CompletionTokens
}

// ProducedVideo reports whether the call produced video output.
// A call produces either images or video, never both.
func (r Record) ProducedVideo() bool {
	return r.VideoSeconds > 0 && r.ImagesGenerated == 0
}

// Summary is one aggregate row per unique key
// (user, brand, period, period start, provider, model).
// Counters only ever grow; period_start is NULL iff period = total.
type Summary struct {
	ID      uuid.UUID `db:"id"`
	UserID  *int64    `db:"user_id"`
	BrandID int64     `db:"brand_id"`

	Period      Period     `db:"period"`
	PeriodStart *time.Time `db:"period_start"`

	Provider string `db:"provider"`
	Model    string `db:"model"`

	RequestCount          int64   `db:"request_count"`
	TotalPromptTokens     int64   `db:"total_prompt_tokens"`
	TotalCompletionTokens int64   `db:"total_completion_tokens"`
	TotalTokens           int64   `db:"total_tokens"`
	ImagesGenerated       int64   `db:"images_generated"`
	VideosGenerated       int64   `db:"videos_generated"`
	VideoSecondsGenerated float64 `db:"video_seconds_generated"`
	EstimatedCostUSD      float64 `db:"estimated_cost_usd"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Key identifies one summary row.
type Key struct {
	UserID      *int64
	BrandID     int64
	Period      Period
	PeriodStart *time.Time
	Provider    string
	Model       string
}

// BucketKeys derives the three bucket keys for a record: daily (UTC calendar
// date), monthly (first day of the UTC month) and total (nil period start).
func BucketKeys(r Record, now time.Time) []Key {
	occurred := r.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	day := occurred.UTC().Truncate(24 * time.Hour)
	month := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)

	base := Key{UserID: r.UserID, BrandID: r.BrandID, Provider: r.Provider, Model: r.Model}

	daily := base
	daily.Period = PeriodDaily
	daily.PeriodStart = &day

	monthly := base
	monthly.Period = PeriodMonthly
	monthly.PeriodStart = &month

	total := base
	total.Period = PeriodTotal

	return []Key{daily, monthly, total}
}
