package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calliope/internal/domain/audit"
	"calliope/internal/services/costs"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// Analytics is an optional best-effort mirror of audit rows into an analytics
// store. Mirror failures never propagate to the caller.
type Analytics interface {
	Mirror(ctx context.Context, req *audit.Request) error
}

// Params describes one completed AI call to be audited.
type Params struct {
	PostID  *int64
	UserID  *int64
	BrandID int64
	JobID   *uuid.UUID

	ActionCode string
	AgentType  string
	Provider   string
	Model      string

	PromptTokens     int64
	CompletionTokens int64
	ImagesGenerated  int64
	VideoSeconds     float64

	// RequestedAt is required. StartedAt defaults to RequestedAt and
	// CompletedAt defaults to now when omitted.
	RequestedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Status       audit.Status
	ErrorMessage *string
}

// Service is the append-only audit ledger of AI calls.
// This write path is internal-only: audit rows are a side effect of
// generation, not a user action, so the public surface stays read-only.
type Service struct {
	repo      audit.Repository
	analytics Analytics
	calc      *costs.Calculator
	now       func() time.Time
	log       *logger.Logger
}

// NewService creates the audit log service. analytics may be nil.
func NewService(repo audit.Repository, analytics Analytics, calc *costs.Calculator) *Service {
	return &Service{
		repo:      repo,
		analytics: analytics,
		calc:      calc,
		now:       time.Now,
		log:       logger.Get().With("component", "audit_log"),
	}
}

// Log prices the call and appends exactly one immutable row.
func (s *Service) Log(ctx context.Context, params Params) (*audit.Request, error) {
	if params.BrandID == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "audit entry requires a brand")
	}
	if !params.Status.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown audit status %q", params.Status)
	}

	requestedAt := params.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = s.now()
	}
	startedAt := requestedAt
	if params.StartedAt != nil {
		startedAt = *params.StartedAt
	}
	completedAt := s.now()
	if params.CompletedAt != nil {
		completedAt = *params.CompletedAt
	}
	if startedAt.Before(requestedAt) || completedAt.Before(startedAt) {
		return nil, errors.Wrap(errors.ErrInvalidInput, "audit timestamps out of order")
	}

	result := s.calc.Calculate(ctx, params.Provider, params.Model, costs.Usage{
		PromptTokens:     params.PromptTokens,
		CompletionTokens: params.CompletionTokens,
		ImagesGenerated:  params.ImagesGenerated,
		VideoSeconds:     params.VideoSeconds,
	})
	if result.Warning != "" {
		s.log.Warnf("Audit entry recorded without pricing: %s", result.Warning)
	}

	req := &audit.Request{
		ID:      uuid.New(),
		PostID:  params.PostID,
		UserID:  params.UserID,
		BrandID: params.BrandID,
		JobID:   params.JobID,

		ActionCode: params.ActionCode,
		Action:     audit.ActionDescription(params.ActionCode),
		AgentType:  params.AgentType,
		AgentLabel: audit.AgentLabel(params.AgentType),

		Provider: params.Provider,
		Model:    params.Model,

		PromptTokens:     params.PromptTokens,
		CompletionTokens: params.CompletionTokens,
		TotalTokens:      params.PromptTokens + params.CompletionTokens,
		ImagesGenerated:  params.ImagesGenerated,
		VideoSeconds:     params.VideoSeconds,

		InputCostUSD:  costs.RoundUSD(result.Breakdown.InputCostUSD),
		OutputCostUSD: costs.RoundUSD(result.Breakdown.OutputCostUSD),
		ImageCostUSD:  costs.RoundUSD(result.Breakdown.ImageCostUSD),
		VideoCostUSD:  costs.RoundUSD(result.Breakdown.VideoCostUSD),
		CostUSD:       costs.RoundUSD(result.CostUSD),

		RequestedAt: requestedAt,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMs:  completedAt.Sub(startedAt).Milliseconds(),

		Status:       params.Status,
		ErrorMessage: params.ErrorMessage,

		CreatedAt: s.now(),
	}

	if err := s.repo.Append(ctx, req); err != nil {
		return nil, errors.Wrap(err, "append audit row")
	}

	if s.analytics != nil {
		if err := s.analytics.Mirror(ctx, req); err != nil {
			// The analytics mirror is best-effort; Postgres already holds
			// the row of record.
			s.log.Warnf("Audit analytics mirror failed: %v", err)
		}
	}

	return req, nil
}

// Get returns a single audit row.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*audit.Request, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns audit rows matching the filter, newest request first.
func (s *Service) List(ctx context.Context, filter audit.Filter) ([]audit.Request, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown audit status %q", filter.Status)
	}
	return s.repo.List(ctx, filter)
}
