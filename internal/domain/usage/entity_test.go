package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketKeys(t *testing.T) {
	userID := int64(7)
	rec := Record{
		UserID:   &userID,
		BrandID:  42,
		Provider: "openai",
		Model:    "gpt-4o",
	}

	t.Run("derives daily, monthly and total buckets", func(t *testing.T) {
		rec := rec
		rec.OccurredAt = time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)

		keys := BucketKeys(rec, time.Now())
		require.Len(t, keys, 3)

		daily, monthly, total := keys[0], keys[1], keys[2]

		assert.Equal(t, PeriodDaily, daily.Period)
		require.NotNil(t, daily.PeriodStart)
		assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), *daily.PeriodStart)

		assert.Equal(t, PeriodMonthly, monthly.Period)
		require.NotNil(t, monthly.PeriodStart)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *monthly.PeriodStart)

		assert.Equal(t, PeriodTotal, total.Period)
		assert.Nil(t, total.PeriodStart)

		for _, key := range keys {
			assert.Equal(t, rec.UserID, key.UserID)
			assert.Equal(t, rec.BrandID, key.BrandID)
			assert.Equal(t, rec.Provider, key.Provider)
			assert.Equal(t, rec.Model, key.Model)
		}
	})

	t.Run("buckets follow the UTC calendar date", func(t *testing.T) {
		rec := rec
		// 23:30 on June 30 in UTC-5 is already July 1 in UTC.
		loc := time.FixedZone("UTC-5", -5*3600)
		rec.OccurredAt = time.Date(2025, 6, 30, 23, 30, 0, 0, loc)

		keys := BucketKeys(rec, time.Now())
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *keys[0].PeriodStart)
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *keys[1].PeriodStart)
	})

	t.Run("zero occurred time falls back to now", func(t *testing.T) {
		now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)

		keys := BucketKeys(rec, now)
		assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), *keys[0].PeriodStart)
		assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), *keys[1].PeriodStart)
	})
}

func TestRecordProducedVideo(t *testing.T) {
	assert.False(t, Record{}.ProducedVideo())
	assert.True(t, Record{VideoSeconds: 8}.ProducedVideo())
	assert.False(t, Record{VideoSeconds: 8, ImagesGenerated: 1}.ProducedVideo())
	assert.False(t, Record{ImagesGenerated: 3}.ProducedVideo())
}
