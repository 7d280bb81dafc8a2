package usage

import (
	"context"
	"time"

	"calliope/internal/domain/usage"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// Service rolls per-call usage records into daily/monthly/total summaries.
// Atomicity of the per-key increment is the repository's contract; the service
// only derives the bucket keys and fans the record out.
type Service struct {
	repo usage.Repository
	now  func() time.Time
	log  *logger.Logger
}

// NewService creates a usage aggregation service.
func NewService(repo usage.Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
		log:  logger.Get().With("component", "usage_aggregator"),
	}
}

// AddUsage folds one completed call into its daily, monthly and total buckets.
// Each bucket update is an atomic increment-or-create in the repository.
func (s *Service) AddUsage(ctx context.Context, rec usage.Record) error {
	if rec.BrandID == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "usage record requires a brand")
	}
	if rec.Provider == "" || rec.Model == "" {
		return errors.Wrap(errors.ErrInvalidInput, "usage record requires provider and model")
	}

	for _, key := range usage.BucketKeys(rec, s.now()) {
		if err := s.repo.Apply(ctx, key, rec); err != nil {
			return errors.Wrapf(err, "apply usage to %s bucket", key.Period)
		}
	}

	s.log.Debugw("Usage aggregated",
		"brand_id", rec.BrandID,
		"provider", rec.Provider,
		"model", rec.Model,
		"tokens", rec.TotalTokens(),
		"cost_usd", rec.CostUSD,
	)

	return nil
}

// GetUsageByBrand returns the brand's summaries, newest update first.
func (s *Service) GetUsageByBrand(ctx context.Context, brandID int64, period *usage.Period) ([]usage.Summary, error) {
	if period != nil && !period.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown period %q", *period)
	}
	return s.repo.ListByBrand(ctx, brandID, period)
}

// GetUsageByUser returns the user's summaries, newest update first.
func (s *Service) GetUsageByUser(ctx context.Context, userID int64, period *usage.Period) ([]usage.Summary, error) {
	if period != nil && !period.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown period %q", *period)
	}
	return s.repo.ListByUser(ctx, userID, period)
}

// GetTotalCostByBrand sums all-time cost for a brand.
// Returns 0 for a brand with no usage history.
func (s *Service) GetTotalCostByBrand(ctx context.Context, brandID int64) (float64, error) {
	return s.repo.TotalCostByBrand(ctx, brandID)
}

// GetCurrentMonthCostByBrand sums the brand's cost for the current UTC month.
// Returns 0 when no rows match.
func (s *Service) GetCurrentMonthCostByBrand(ctx context.Context, brandID int64) (float64, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.MonthCostByBrand(ctx, brandID, monthStart)
}
