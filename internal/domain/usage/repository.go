package usage

import (
	"context"
	"time"
)

// Repository persists usage summaries.
//
// Apply must be a single atomic increment-or-create per key: concurrent calls
// for an identical key must serialize without losing updates. A read-then-write
// implementation is a correctness bug.
type Repository interface {
	// Apply folds one record contribution into the summary row for key,
	// inserting the row when absent.
	Apply(ctx context.Context, key Key, rec Record) error

	// ListByBrand returns summaries for a brand, newest update first.
	// A nil period returns all periods.
	ListByBrand(ctx context.Context, brandID int64, period *Period) ([]Summary, error)

	// ListByUser returns summaries for a user, newest update first.
	ListByUser(ctx context.Context, userID int64, period *Period) ([]Summary, error)

	// TotalCostByBrand sums estimated cost over the brand's total-period rows.
	// Returns 0 when the brand has no usage history.
	TotalCostByBrand(ctx context.Context, brandID int64) (float64, error)

	// MonthCostByBrand sums estimated cost over the brand's monthly rows for
	// the given month start. Returns 0 when no rows match.
	MonthCostByBrand(ctx context.Context, brandID int64, monthStart time.Time) (float64, error)
}
