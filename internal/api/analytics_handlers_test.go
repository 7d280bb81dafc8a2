package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCostAnalytics struct {
	costByBrandSinceFn func(ctx context.Context, brandID int64, since time.Time) (map[string]float64, error)
}

func (f *fakeCostAnalytics) CostByBrandSince(ctx context.Context, brandID int64, since time.Time) (map[string]float64, error) {
	return f.costByBrandSinceFn(ctx, brandID, since)
}

func newAnalyticsRouter(analytics CostAnalytics) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	handler := NewAnalyticsHandler(analytics)
	api.HandleFunc("/brands/{brandID}/costs/models", handler.HandleBrandModelCosts).Methods("GET")
	return r
}

func TestBrandModelCosts(t *testing.T) {
	t.Run("breakdown with explicit since", func(t *testing.T) {
		var gotBrand int64
		var gotSince time.Time
		router := newAnalyticsRouter(&fakeCostAnalytics{
			costByBrandSinceFn: func(_ context.Context, brandID int64, since time.Time) (map[string]float64, error) {
				gotBrand = brandID
				gotSince = since
				return map[string]float64{"openai/gpt-4o": 12.5, "google/imagen-4": 3.2}, nil
			},
		})

		req := httptest.NewRequest("GET", "/api/v1/brands/42/costs/models?since=2025-06-01T00:00:00Z", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), gotBrand)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), gotSince)

		var resp modelCostsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(42), resp.BrandID)
		assert.InDelta(t, 12.5, resp.Costs["openai/gpt-4o"], 1e-9)
		assert.InDelta(t, 3.2, resp.Costs["google/imagen-4"], 1e-9)
	})

	t.Run("since defaults to the last 30 days", func(t *testing.T) {
		var gotSince time.Time
		router := newAnalyticsRouter(&fakeCostAnalytics{
			costByBrandSinceFn: func(_ context.Context, _ int64, since time.Time) (map[string]float64, error) {
				gotSince = since
				return map[string]float64{}, nil
			},
		})

		req := httptest.NewRequest("GET", "/api/v1/brands/7/costs/models", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), gotSince, time.Minute)
	})

	t.Run("malformed since is rejected", func(t *testing.T) {
		router := newAnalyticsRouter(&fakeCostAnalytics{
			costByBrandSinceFn: func(_ context.Context, _ int64, _ time.Time) (map[string]float64, error) {
				t.Fatal("analytics must not be queried")
				return nil, nil
			},
		})

		req := httptest.NewRequest("GET", "/api/v1/brands/7/costs/models?since=yesterday", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_input", resp.Code)
	})

	t.Run("invalid brand id", func(t *testing.T) {
		router := newAnalyticsRouter(&fakeCostAnalytics{
			costByBrandSinceFn: func(_ context.Context, _ int64, _ time.Time) (map[string]float64, error) {
				return nil, nil
			},
		})

		req := httptest.NewRequest("GET", "/api/v1/brands/-3/costs/models", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
