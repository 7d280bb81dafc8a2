package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calliope/internal/adapters/kafka"
	"calliope/internal/domain/audit"
	"calliope/internal/domain/generation"
	"calliope/pkg/logger"
)

// Publisher emits lifecycle events to Kafka. All publishing is best-effort:
// failures are logged and never surfaced to the generation pipeline.
// A nil Publisher is valid and publishes nothing.
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a lifecycle event publisher.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

type jobEvent struct {
	Type      string    `json:"type"`
	JobID     uuid.UUID `json:"jobId"`
	BrandID   int64     `json:"brandId"`
	Pipeline  string    `json:"pipeline"`
	Status    string    `json:"status"`
	CostUSD   float64   `json:"costUsd,omitempty"`
	Tokens    int64     `json:"tokens,omitempty"`
	Error     string    `json:"error,omitempty"`
	EmittedAt time.Time `json:"emittedAt"`
}

type auditEvent struct {
	Type       string    `json:"type"`
	RequestID  uuid.UUID `json:"requestId"`
	BrandID    int64     `json:"brandId"`
	ActionCode string    `json:"actionCode"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	CostUSD    float64   `json:"costUsd"`
	Status     string    `json:"status"`
	EmittedAt  time.Time `json:"emittedAt"`
}

// PublishJobStarted emits a job started event.
func (p *Publisher) PublishJobStarted(ctx context.Context, job *generation.Job) {
	p.publishJob(ctx, EventJobStarted, job, "")
}

// PublishJobCompleted emits a job completed event with final totals.
func (p *Publisher) PublishJobCompleted(ctx context.Context, job *generation.Job) {
	p.publishJob(ctx, EventJobCompleted, job, "")
}

// PublishJobFailed emits a job failed event carrying the failure message.
func (p *Publisher) PublishJobFailed(ctx context.Context, job *generation.Job, message string) {
	p.publishJob(ctx, EventJobFailed, job, message)
}

// PublishAuditLogged emits an event for one appended audit row.
func (p *Publisher) PublishAuditLogged(ctx context.Context, req *audit.Request) {
	if p == nil || p.producer == nil {
		return
	}

	event := auditEvent{
		Type:       EventAuditLogged,
		RequestID:  req.ID,
		BrandID:    req.BrandID,
		ActionCode: req.ActionCode,
		Provider:   req.Provider,
		Model:      req.Model,
		CostUSD:    req.CostUSD,
		Status:     string(req.Status),
		EmittedAt:  time.Now().UTC(),
	}

	if err := p.producer.Publish(ctx, TopicAuditEvents, req.ID.String(), event); err != nil {
		p.log.Warnf("Failed to publish audit event: %v", err)
	}
}

func (p *Publisher) publishJob(ctx context.Context, eventType string, job *generation.Job, message string) {
	if p == nil || p.producer == nil {
		return
	}

	event := jobEvent{
		Type:      eventType,
		JobID:     job.ID,
		BrandID:   job.BrandID,
		Pipeline:  string(job.Pipeline),
		Status:    string(job.Status),
		CostUSD:   job.TotalCostUSD,
		Tokens:    job.TotalTokens,
		Error:     message,
		EmittedAt: time.Now().UTC(),
	}

	if err := p.producer.Publish(ctx, TopicGenerationEvents, job.ID.String(), event); err != nil {
		p.log.Warnf("Failed to publish %s event: %v", eventType, err)
	}
}
