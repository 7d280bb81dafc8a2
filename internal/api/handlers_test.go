package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calliope/internal/domain/audit"
	"calliope/internal/domain/generation"
	"calliope/internal/domain/usage"
	generationsvc "calliope/internal/services/generation"
	"calliope/pkg/errors"
)

type fakeGenerationService struct {
	startFn     func(ctx context.Context, params generationsvc.StartParams) (*generation.Job, error)
	statusFn    func(ctx context.Context, jobID uuid.UUID) (*generation.Job, error)
	reconnectFn func(ctx context.Context, jobID uuid.UUID) (*generation.ProgressEvent, <-chan generation.ProgressEvent, func(), error)
}

func (f *fakeGenerationService) Start(ctx context.Context, params generationsvc.StartParams) (*generation.Job, error) {
	return f.startFn(ctx, params)
}

func (f *fakeGenerationService) Status(ctx context.Context, jobID uuid.UUID) (*generation.Job, error) {
	return f.statusFn(ctx, jobID)
}

func (f *fakeGenerationService) Reconnect(ctx context.Context, jobID uuid.UUID) (*generation.ProgressEvent, <-chan generation.ProgressEvent, func(), error) {
	return f.reconnectFn(ctx, jobID)
}

type fakeUsageService struct {
	byBrand   func(ctx context.Context, brandID int64, period *usage.Period) ([]usage.Summary, error)
	byUser    func(ctx context.Context, userID int64, period *usage.Period) ([]usage.Summary, error)
	totalCost func(ctx context.Context, brandID int64) (float64, error)
	monthCost func(ctx context.Context, brandID int64) (float64, error)
}

func (f *fakeUsageService) GetUsageByBrand(ctx context.Context, brandID int64, period *usage.Period) ([]usage.Summary, error) {
	return f.byBrand(ctx, brandID, period)
}

func (f *fakeUsageService) GetUsageByUser(ctx context.Context, userID int64, period *usage.Period) ([]usage.Summary, error) {
	return f.byUser(ctx, userID, period)
}

func (f *fakeUsageService) GetTotalCostByBrand(ctx context.Context, brandID int64) (float64, error) {
	return f.totalCost(ctx, brandID)
}

func (f *fakeUsageService) GetCurrentMonthCostByBrand(ctx context.Context, brandID int64) (float64, error) {
	return f.monthCost(ctx, brandID)
}

type fakeAuditService struct {
	getFn  func(ctx context.Context, id uuid.UUID) (*audit.Request, error)
	listFn func(ctx context.Context, filter audit.Filter) ([]audit.Request, error)
}

func (f *fakeAuditService) Get(ctx context.Context, id uuid.UUID) (*audit.Request, error) {
	return f.getFn(ctx, id)
}

func (f *fakeAuditService) List(ctx context.Context, filter audit.Filter) ([]audit.Request, error) {
	return f.listFn(ctx, filter)
}

// newTestRouter wires handlers with the same routes the server registers.
func newTestRouter(gen GenerationService, usg UsageService, aud AuditService) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	if gen != nil {
		genHandler := NewGenerationHandler(gen)
		progressHandler := NewProgressHandler(gen)
		api.HandleFunc("/generations", genHandler.HandleStart).Methods("POST")
		api.HandleFunc("/generations/{id}", genHandler.HandleStatus).Methods("GET")
		api.HandleFunc("/generations/{id}/progress", progressHandler.HandleProgress).Methods("GET")
	}
	if usg != nil {
		usageHandler := NewUsageHandler(usg)
		api.HandleFunc("/brands/{brandID}/usage", usageHandler.HandleBrandUsage).Methods("GET")
		api.HandleFunc("/brands/{brandID}/costs/total", usageHandler.HandleBrandTotalCost).Methods("GET")
		api.HandleFunc("/brands/{brandID}/costs/month", usageHandler.HandleBrandMonthCost).Methods("GET")
		api.HandleFunc("/users/{userID}/usage", usageHandler.HandleUserUsage).Methods("GET")
	}
	if aud != nil {
		auditHandler := NewAuditHandler(aud)
		api.HandleFunc("/audit", auditHandler.HandleList).Methods("GET")
		api.HandleFunc("/audit/{id}", auditHandler.HandleGet).Methods("GET")
		api.PathPrefix("/audit").HandlerFunc(auditHandler.HandleMutation).Methods("POST", "PUT", "PATCH", "DELETE")
	}
	return r
}

func testJob(id uuid.UUID) *generation.Job {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &generation.Job{
		ID:          id,
		BrandID:     42,
		Pipeline:    generation.PipelineTextPost,
		Prompt:      "summer sale announcement",
		Status:      generation.StatusStarted,
		CurrentStep: generation.StepBrandContext,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestHandleStart(t *testing.T) {
	t.Run("accepts valid request", func(t *testing.T) {
		jobID := uuid.New()
		var got generationsvc.StartParams
		router := newTestRouter(&fakeGenerationService{
			startFn: func(_ context.Context, params generationsvc.StartParams) (*generation.Job, error) {
				got = params
				return testJob(jobID), nil
			},
		}, nil, nil)

		body := `{"brandId":42,"pipeline":"text_post","prompt":"summer sale announcement"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/generations", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, int64(42), got.BrandID)
		assert.Equal(t, generation.PipelineTextPost, got.Pipeline)

		var resp jobResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, jobID.String(), resp.ID)
		assert.Equal(t, "started", resp.Status)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		router := newTestRouter(&fakeGenerationService{
			startFn: func(_ context.Context, _ generationsvc.StartParams) (*generation.Job, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/generations", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps validation errors to 400", func(t *testing.T) {
		router := newTestRouter(&fakeGenerationService{
			startFn: func(_ context.Context, _ generationsvc.StartParams) (*generation.Job, error) {
				return nil, errors.Wrap(errors.ErrInvalidInput, "prompt is required")
			},
		}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/generations", bytes.NewBufferString(`{"brandId":42}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "invalid_input", resp.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	t.Run("returns persisted job", func(t *testing.T) {
		jobID := uuid.New()
		job := testJob(jobID)
		job.Status = generation.StatusCompleted
		job.TotalTokens = 7500
		job.Artifacts = []byte(`[{"kind":"caption","text":"Big summer sale!"}]`)

		router := newTestRouter(&fakeGenerationService{
			statusFn: func(_ context.Context, id uuid.UUID) (*generation.Job, error) {
				require.Equal(t, jobID, id)
				return job, nil
			},
		}, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+jobID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp jobResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "completed", resp.Status)
		assert.Equal(t, int64(7500), resp.TotalTokens)
		require.Len(t, resp.Artifacts, 1)
		assert.Equal(t, "caption", resp.Artifacts[0].Kind)
	})

	t.Run("unknown job is 404", func(t *testing.T) {
		router := newTestRouter(&fakeGenerationService{
			statusFn: func(_ context.Context, id uuid.UUID) (*generation.Job, error) {
				return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", id)
			},
		}, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id is 400", func(t *testing.T) {
		router := newTestRouter(&fakeGenerationService{
			statusFn: func(_ context.Context, _ uuid.UUID) (*generation.Job, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		}, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/generations/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUsageEndpoints(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	summary := usage.Summary{
		BrandID:          42,
		Period:           usage.PeriodDaily,
		PeriodStart:      &day,
		Provider:         "openai",
		Model:            "gpt-4o",
		RequestCount:     3,
		TotalTokens:      4500,
		EstimatedCostUSD: 0.09,
		UpdatedAt:        day,
	}

	t.Run("brand usage passes period through", func(t *testing.T) {
		var gotPeriod *usage.Period
		router := newTestRouter(nil, &fakeUsageService{
			byBrand: func(_ context.Context, brandID int64, period *usage.Period) ([]usage.Summary, error) {
				require.Equal(t, int64(42), brandID)
				gotPeriod = period
				return []usage.Summary{summary}, nil
			},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/brands/42/usage?period=daily", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotPeriod)
		assert.Equal(t, usage.PeriodDaily, *gotPeriod)

		var resp []usageSummaryResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "gpt-4o", resp[0].Model)
		require.NotNil(t, resp[0].PeriodStart)
		assert.Equal(t, "2025-06-01", *resp[0].PeriodStart)
	})

	t.Run("unknown period is 400", func(t *testing.T) {
		router := newTestRouter(nil, &fakeUsageService{
			byBrand: func(_ context.Context, _ int64, _ *usage.Period) ([]usage.Summary, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/brands/42/usage?period=weekly", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("user usage without period", func(t *testing.T) {
		router := newTestRouter(nil, &fakeUsageService{
			byUser: func(_ context.Context, userID int64, period *usage.Period) ([]usage.Summary, error) {
				assert.Equal(t, int64(7), userID)
				assert.Nil(t, period)
				return nil, nil
			},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/7/usage", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("cost rollups", func(t *testing.T) {
		router := newTestRouter(nil, &fakeUsageService{
			totalCost: func(_ context.Context, brandID int64) (float64, error) {
				return 12.34, nil
			},
			monthCost: func(_ context.Context, brandID int64) (float64, error) {
				return 1.5, nil
			},
		}, nil)

		for path, want := range map[string]float64{
			"/api/v1/brands/42/costs/total": 12.34,
			"/api/v1/brands/42/costs/month": 1.5,
		} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, path)

			var resp costResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, want, resp.CostUSD, path)
			assert.Equal(t, int64(42), resp.BrandID, path)
		}
	})
}

func TestAuditEndpoints(t *testing.T) {
	t.Run("list parses filters", func(t *testing.T) {
		var got audit.Filter
		router := newTestRouter(nil, nil, &fakeAuditService{
			listFn: func(_ context.Context, filter audit.Filter) ([]audit.Request, error) {
				got = filter
				return nil, nil
			},
		})

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/audit?brand_id=42&provider=openai&status=failed&limit=10&from=2025-06-01T00:00:00Z", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got.BrandID)
		assert.Equal(t, int64(42), *got.BrandID)
		assert.Equal(t, "openai", got.Provider)
		assert.Equal(t, audit.StatusFailed, got.Status)
		assert.Equal(t, 10, got.Limit)
		require.NotNil(t, got.RequestedFrom)
		assert.Equal(t, 2025, got.RequestedFrom.Year())
	})

	t.Run("get by id", func(t *testing.T) {
		id := uuid.New()
		router := newTestRouter(nil, nil, &fakeAuditService{
			getFn: func(_ context.Context, gotID uuid.UUID) (*audit.Request, error) {
				require.Equal(t, id, gotID)
				return &audit.Request{
					ID:       id,
					BrandID:  42,
					Provider: "openai",
					Model:    "gpt-4o",
					Status:   audit.StatusSuccess,
				}, nil
			},
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/"+id.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp auditRequestResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, id.String(), resp.ID)
		assert.Equal(t, "success", resp.Status)
	})

	t.Run("invalid status filter is 400", func(t *testing.T) {
		router := newTestRouter(nil, nil, &fakeAuditService{
			listFn: func(_ context.Context, _ audit.Filter) ([]audit.Request, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit?status=bogus", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("mutations are rejected", func(t *testing.T) {
		router := newTestRouter(nil, nil, &fakeAuditService{})

		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/v1/audit", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusForbidden, rec.Code, method)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "read_only", resp.Code, method)
		}

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/audit/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
