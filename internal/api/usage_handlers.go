package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"calliope/internal/domain/usage"
	"calliope/pkg/errors"
)

// UsageService is the read side of the usage aggregator.
type UsageService interface {
	GetUsageByBrand(ctx context.Context, brandID int64, period *usage.Period) ([]usage.Summary, error)
	GetUsageByUser(ctx context.Context, userID int64, period *usage.Period) ([]usage.Summary, error)
	GetTotalCostByBrand(ctx context.Context, brandID int64) (float64, error)
	GetCurrentMonthCostByBrand(ctx context.Context, brandID int64) (float64, error)
}

// UsageHandler serves usage summary and cost endpoints.
type UsageHandler struct {
	service UsageService
}

func NewUsageHandler(service UsageService) *UsageHandler {
	return &UsageHandler{service: service}
}

type usageSummaryResponse struct {
	UserID      *int64  `json:"userId,omitempty"`
	BrandID     int64   `json:"brandId"`
	Period      string  `json:"period"`
	PeriodStart *string `json:"periodStart,omitempty"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`

	RequestCount          int64   `json:"requestCount"`
	TotalPromptTokens     int64   `json:"totalPromptTokens"`
	TotalCompletionTokens int64   `json:"totalCompletionTokens"`
	TotalTokens           int64   `json:"totalTokens"`
	ImagesGenerated       int64   `json:"imagesGenerated"`
	VideosGenerated       int64   `json:"videosGenerated"`
	VideoSecondsGenerated float64 `json:"videoSecondsGenerated"`
	EstimatedCostUSD      float64 `json:"estimatedCostUsd"`

	UpdatedAt string `json:"updatedAt"`
}

type costResponse struct {
	BrandID int64   `json:"brandId"`
	CostUSD float64 `json:"costUsd"`
}

func toSummaryResponses(summaries []usage.Summary) []usageSummaryResponse {
	out := make([]usageSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp := usageSummaryResponse{
			UserID:                s.UserID,
			BrandID:               s.BrandID,
			Period:                string(s.Period),
			Provider:              s.Provider,
			Model:                 s.Model,
			RequestCount:          s.RequestCount,
			TotalPromptTokens:     s.TotalPromptTokens,
			TotalCompletionTokens: s.TotalCompletionTokens,
			TotalTokens:           s.TotalTokens,
			ImagesGenerated:       s.ImagesGenerated,
			VideosGenerated:       s.VideosGenerated,
			VideoSecondsGenerated: s.VideoSecondsGenerated,
			EstimatedCostUSD:      s.EstimatedCostUSD,
			UpdatedAt:             s.UpdatedAt.Format(timeFormat),
		}
		if s.PeriodStart != nil {
			start := s.PeriodStart.Format("2006-01-02")
			resp.PeriodStart = &start
		}
		out = append(out, resp)
	}
	return out
}

// parsePeriod converts the optional ?period= query parameter.
func parsePeriod(r *http.Request) (*usage.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return nil, nil
	}
	period := usage.Period(raw)
	if !period.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown period %q", raw)
	}
	return &period, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "invalid %s", name)
	}
	return id, nil
}

// HandleBrandUsage lists usage summaries for a brand.
// GET /api/v1/brands/{brandID}/usage?period=daily|monthly|total
func (h *UsageHandler) HandleBrandUsage(w http.ResponseWriter, r *http.Request) {
	brandID, err := pathID(r, "brandID")
	if err != nil {
		writeError(w, err)
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summaries, err := h.service.GetUsageByBrand(r.Context(), brandID, period)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

// HandleUserUsage lists usage summaries for a user.
// GET /api/v1/users/{userID}/usage?period=daily|monthly|total
func (h *UsageHandler) HandleUserUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summaries, err := h.service.GetUsageByUser(r.Context(), userID, period)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

// HandleBrandTotalCost returns the lifetime spend of a brand.
// GET /api/v1/brands/{brandID}/costs/total
func (h *UsageHandler) HandleBrandTotalCost(w http.ResponseWriter, r *http.Request) {
	brandID, err := pathID(r, "brandID")
	if err != nil {
		writeError(w, err)
		return
	}

	cost, err := h.service.GetTotalCostByBrand(r.Context(), brandID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, costResponse{BrandID: brandID, CostUSD: cost})
}

// HandleBrandMonthCost returns the current calendar month spend of a brand.
// GET /api/v1/brands/{brandID}/costs/month
func (h *UsageHandler) HandleBrandMonthCost(w http.ResponseWriter, r *http.Request) {
	brandID, err := pathID(r, "brandID")
	if err != nil {
		writeError(w, err)
		return
	}

	cost, err := h.service.GetCurrentMonthCostByBrand(r.Context(), brandID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, costResponse{BrandID: brandID, CostUSD: cost})
}
