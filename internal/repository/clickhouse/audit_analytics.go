package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"calliope/internal/domain/audit"
	auditsvc "calliope/internal/services/audit"
	"calliope/pkg/clickhouse"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// Compile-time check
var _ auditsvc.Analytics = (*AuditAnalyticsRepository)(nil)

// AuditAnalyticsRepository mirrors audit rows into ClickHouse for analytics
// queries. Postgres stays the source of truth; this mirror is best-effort
// and buffered through the batch writer.
type AuditAnalyticsRepository struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter
}

// NewAuditAnalyticsRepository creates an audit analytics mirror with batch writer
func NewAuditAnalyticsRepository(conn driver.Conn) *AuditAnalyticsRepository {
	repo := &AuditAnalyticsRepository{
		conn: conn,
	}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig{
		FlushFunc:    repo.flushBatch,
		TableName:    "audit_requests",
		MaxBatchSize: 500,
		MaxAge:       5 * time.Second,
	})

	return repo
}

// Start begins the background flush loop
func (r *AuditAnalyticsRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop gracefully shuts down the batch writer
func (r *AuditAnalyticsRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Mirror buffers one audit row for batch insertion
func (r *AuditAnalyticsRepository) Mirror(ctx context.Context, req *audit.Request) error {
	return r.batchWriter.Add(ctx, req)
}

// flushBatch performs one batch INSERT for all buffered rows using the
// ClickHouse native batch protocol.
func (r *AuditAnalyticsRepository) flushBatch(ctx context.Context, batch []interface{}) error {
	if len(batch) == 0 {
		return nil
	}

	log := logger.Get().With("component", "audit_analytics_batch")

	query := `
		INSERT INTO audit_requests (
			id, post_id, user_id, brand_id, job_id,
			action_code, action, agent_type, agent_label,
			provider, model,
			prompt_tokens, completion_tokens, total_tokens, images_generated, video_seconds,
			input_cost_usd, output_cost_usd, image_cost_usd, video_cost_usd, cost_usd,
			requested_at, started_at, completed_at, duration_ms,
			status, error_message, created_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?
		)
	`

	start := time.Now()

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	validItems := 0
	for _, item := range batch {
		req, ok := item.(*audit.Request)
		if !ok {
			log.Warnf("Skipping invalid item type: %T", item)
			continue
		}

		err := stmt.Append(
			req.ID, req.PostID, req.UserID, req.BrandID, req.JobID,
			req.ActionCode, req.Action, req.AgentType, req.AgentLabel,
			req.Provider, req.Model,
			req.PromptTokens, req.CompletionTokens, req.TotalTokens, req.ImagesGenerated, req.VideoSeconds,
			req.InputCostUSD, req.OutputCostUSD, req.ImageCostUSD, req.VideoCostUSD, req.CostUSD,
			req.RequestedAt, req.StartedAt, req.CompletedAt, req.DurationMs,
			string(req.Status), req.ErrorMessage, req.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
		validItems++
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	log.Debugf("Batch inserted %d audit rows in %v", validItems, time.Since(start))
	return nil
}

// CostByBrandSince aggregates mirrored cost per provider/model for a brand.
func (r *AuditAnalyticsRepository) CostByBrandSince(ctx context.Context, brandID int64, since time.Time) (map[string]float64, error) {
	query := `
		SELECT concat(provider, '/', model) AS pair, sum(cost_usd) AS total
		FROM audit_requests
		WHERE brand_id = ? AND requested_at >= ?
		GROUP BY pair
	`

	rows, err := r.conn.Query(ctx, query, brandID, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query brand cost")
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var (
			pair  string
			total float64
		)
		if err := rows.Scan(&pair, &total); err != nil {
			return nil, errors.Wrap(err, "failed to scan brand cost row")
		}
		result[pair] = total
	}

	return result, nil
}
