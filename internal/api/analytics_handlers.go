package api

import (
	"context"
	"net/http"
	"time"

	"calliope/pkg/errors"
)

// CostAnalytics reads cost rollups from the analytics mirror.
type CostAnalytics interface {
	CostByBrandSince(ctx context.Context, brandID int64, since time.Time) (map[string]float64, error)
}

// AnalyticsHandler serves ClickHouse-backed cost breakdowns. The route is
// registered only when the analytics mirror is enabled.
type AnalyticsHandler struct {
	analytics CostAnalytics
}

func NewAnalyticsHandler(analytics CostAnalytics) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

type modelCostsResponse struct {
	BrandID int64              `json:"brandId"`
	Since   string             `json:"since"`
	Costs   map[string]float64 `json:"costs"`
}

// HandleBrandModelCosts breaks brand spend down per provider/model pair.
// GET /api/v1/brands/{brandID}/costs/models?since=RFC3339 (defaults to the
// last 30 days)
func (h *AnalyticsHandler) HandleBrandModelCosts(w http.ResponseWriter, r *http.Request) {
	brandID, err := pathID(r, "brandID")
	if err != nil {
		writeError(w, err)
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, errors.Wrapf(errors.ErrInvalidInput, "invalid since %q", raw))
			return
		}
		since = parsed.UTC()
	}

	costs, err := h.analytics.CostByBrandSince(r.Context(), brandID, since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, modelCostsResponse{
		BrandID: brandID,
		Since:   since.Format(timeFormat),
		Costs:   costs,
	})
}
