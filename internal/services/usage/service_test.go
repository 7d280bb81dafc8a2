package usage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calliope/internal/domain/usage"
)

// memoryRepo implements usage.Repository with the same atomic
// increment-or-create contract the Postgres upsert provides.
type memoryRepo struct {
	mu   sync.Mutex
	rows map[string]*usage.Summary
	now  time.Time
}

func newMemoryRepo(now time.Time) *memoryRepo {
	return &memoryRepo{rows: make(map[string]*usage.Summary), now: now}
}

func keyString(k usage.Key) string {
	user := "none"
	if k.UserID != nil {
		user = fmt.Sprint(*k.UserID)
	}
	start := "none"
	if k.PeriodStart != nil {
		start = k.PeriodStart.Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%d|%s|%s|%s|%s", user, k.BrandID, k.Period, start, k.Provider, k.Model)
}

func (m *memoryRepo) Apply(_ context.Context, k usage.Key, rec usage.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ks := keyString(k)
	row, ok := m.rows[ks]
	if !ok {
		row = &usage.Summary{
			UserID:      k.UserID,
			BrandID:     k.BrandID,
			Period:      k.Period,
			PeriodStart: k.PeriodStart,
			Provider:    k.Provider,
			Model:       k.Model,
			CreatedAt:   m.now,
		}
		m.rows[ks] = row
	}

	row.RequestCount++
	row.TotalPromptTokens += rec.PromptTokens
	row.TotalCompletionTokens += rec.CompletionTokens
	row.TotalTokens += rec.TotalTokens()
	row.ImagesGenerated += rec.ImagesGenerated
	if rec.ProducedVideo() {
		row.VideosGenerated++
	}
	row.VideoSecondsGenerated += rec.VideoSeconds
	row.EstimatedCostUSD += rec.CostUSD
	row.UpdatedAt = m.now
	return nil
}

func (m *memoryRepo) ListByBrand(_ context.Context, brandID int64, period *usage.Period) ([]usage.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []usage.Summary
	for _, row := range m.rows {
		if row.BrandID != brandID {
			continue
		}
		if period != nil && row.Period != *period {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (m *memoryRepo) ListByUser(_ context.Context, userID int64, period *usage.Period) ([]usage.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []usage.Summary
	for _, row := range m.rows {
		if row.UserID == nil || *row.UserID != userID {
			continue
		}
		if period != nil && row.Period != *period {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (m *memoryRepo) TotalCostByBrand(_ context.Context, brandID int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum float64
	for _, row := range m.rows {
		if row.BrandID == brandID && row.Period == usage.PeriodTotal {
			sum += row.EstimatedCostUSD
		}
	}
	return sum, nil
}

func (m *memoryRepo) MonthCostByBrand(_ context.Context, brandID int64, monthStart time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum float64
	for _, row := range m.rows {
		if row.BrandID == brandID && row.Period == usage.PeriodMonthly &&
			row.PeriodStart != nil && row.PeriodStart.Equal(monthStart) {
			sum += row.EstimatedCostUSD
		}
	}
	return sum, nil
}

func newTestService(repo usage.Repository, now time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func TestService_AddUsage(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("same-day calls fold into one daily row", func(t *testing.T) {
		repo := newMemoryRepo(now)
		svc := newTestService(repo, now)

		rec := usage.Record{
			BrandID:         7,
			Provider:        "google",
			Model:           "imagen-4",
			ImagesGenerated: 2,
			CostUSD:         0.08,
		}
		require.NoError(t, svc.AddUsage(ctx, rec))
		require.NoError(t, svc.AddUsage(ctx, rec))

		daily := usage.PeriodDaily
		rows, err := svc.GetUsageByBrand(ctx, 7, &daily)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		assert.Equal(t, int64(2), rows[0].RequestCount)
		assert.Equal(t, int64(4), rows[0].ImagesGenerated)
		assert.InDelta(t, 0.16, rows[0].EstimatedCostUSD, 1e-9)
	})

	t.Run("fans into daily monthly and total buckets", func(t *testing.T) {
		repo := newMemoryRepo(now)
		svc := newTestService(repo, now)

		userID := int64(42)
		require.NoError(t, svc.AddUsage(ctx, usage.Record{
			UserID:           &userID,
			BrandID:          7,
			Provider:         "openai",
			Model:            "gpt-4o",
			PromptTokens:     1000,
			CompletionTokens: 500,
			CostUSD:          0.01,
		}))

		rows, err := svc.GetUsageByBrand(ctx, 7, nil)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		periods := map[usage.Period]usage.Summary{}
		for _, row := range rows {
			periods[row.Period] = row
		}

		require.NotNil(t, periods[usage.PeriodDaily].PeriodStart)
		assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), *periods[usage.PeriodDaily].PeriodStart)
		require.NotNil(t, periods[usage.PeriodMonthly].PeriodStart)
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), *periods[usage.PeriodMonthly].PeriodStart)
		assert.Nil(t, periods[usage.PeriodTotal].PeriodStart)

		for _, row := range rows {
			assert.Equal(t, int64(1500), row.TotalTokens)
		}
	})

	t.Run("video without images increments videosGenerated", func(t *testing.T) {
		repo := newMemoryRepo(now)
		svc := newTestService(repo, now)

		require.NoError(t, svc.AddUsage(ctx, usage.Record{
			BrandID:      3,
			Provider:     "google",
			Model:        "veo-3",
			VideoSeconds: 8,
			CostUSD:      3.2,
		}))

		total := usage.PeriodTotal
		rows, err := svc.GetUsageByBrand(ctx, 3, &total)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		assert.Equal(t, int64(1), rows[0].VideosGenerated)
		assert.InDelta(t, 8.0, rows[0].VideoSecondsGenerated, 1e-9)
		assert.Zero(t, rows[0].ImagesGenerated)
	})

	t.Run("concurrent calls for one key lose no updates", func(t *testing.T) {
		repo := newMemoryRepo(now)
		svc := newTestService(repo, now)

		const workers = 50
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = svc.AddUsage(ctx, usage.Record{
					BrandID:      9,
					Provider:     "openai",
					Model:        "gpt-4o-mini",
					PromptTokens: 10,
					CostUSD:      0.001,
				})
			}()
		}
		wg.Wait()

		daily := usage.PeriodDaily
		rows, err := svc.GetUsageByBrand(ctx, 9, &daily)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(workers), rows[0].RequestCount)
		assert.Equal(t, int64(10*workers), rows[0].TotalPromptTokens)
	})

	t.Run("rejects records without brand or model", func(t *testing.T) {
		svc := newTestService(newMemoryRepo(now), now)

		assert.Error(t, svc.AddUsage(ctx, usage.Record{Provider: "openai", Model: "gpt-4o"}))
		assert.Error(t, svc.AddUsage(ctx, usage.Record{BrandID: 1, Provider: "openai"}))
	})
}

func TestService_CostGetters(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	repo := newMemoryRepo(now)
	svc := newTestService(repo, now)

	t.Run("zero for unknown brand", func(t *testing.T) {
		total, err := svc.GetTotalCostByBrand(ctx, 404)
		require.NoError(t, err)
		assert.Zero(t, total)

		month, err := svc.GetCurrentMonthCostByBrand(ctx, 404)
		require.NoError(t, err)
		assert.Zero(t, month)
	})

	t.Run("sums total and current month rows", func(t *testing.T) {
		require.NoError(t, svc.AddUsage(ctx, usage.Record{
			BrandID: 7, Provider: "openai", Model: "gpt-4o", CostUSD: 1.5,
		}))
		require.NoError(t, svc.AddUsage(ctx, usage.Record{
			BrandID: 7, Provider: "google", Model: "imagen-4", CostUSD: 0.5,
		}))

		total, err := svc.GetTotalCostByBrand(ctx, 7)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, total, 1e-9)

		month, err := svc.GetCurrentMonthCostByBrand(ctx, 7)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, month, 1e-9)
	})
}
