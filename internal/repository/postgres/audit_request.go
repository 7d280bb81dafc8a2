package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"calliope/internal/domain/audit"
)

// Compile-time check
var _ audit.Repository = (*AuditRequestRepository)(nil)

// AuditRequestRepository implements audit.Repository using sqlx.
// Append-only by construction: the repository exposes no update or delete.
type AuditRequestRepository struct {
	db DBTX
}

// NewAuditRequestRepository creates a new audit request repository
func NewAuditRequestRepository(db DBTX) *AuditRequestRepository {
	return &AuditRequestRepository{db: db}
}

// Append inserts one immutable audit row
func (r *AuditRequestRepository) Append(ctx context.Context, req *audit.Request) error {
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
			:id, :post_id, :user_id, :brand_id, :job_id,
			:action_code, :action, :agent_type, :agent_label,
			:provider, :model,
			:prompt_tokens, :completion_tokens, :total_tokens, :images_generated, :video_seconds,
			:input_cost_usd, :output_cost_usd, :image_cost_usd, :video_cost_usd, :cost_usd,
			:requested_at, :started_at, :completed_at, :duration_ms,
			:status, :error_message, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, req)
	return err
}

// GetByID returns a single audit row
func (r *AuditRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Request, error) {
	var req audit.Request

	query := `SELECT * FROM audit_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &req, query, id)
	if err != nil {
		return nil, err
	}

	return &req, nil
}

// List returns audit rows matching the filter, newest request first
func (r *AuditRequestRepository) List(ctx context.Context, filter audit.Filter) ([]audit.Request, error) {
	var (
		conditions []string
		args       []interface{}
	)

	add := func(condition string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.ID != nil {
		add("id = $%d", *filter.ID)
	}
	if filter.PostID != nil {
		add("post_id = $%d", *filter.PostID)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.BrandID != nil {
		add("brand_id = $%d", *filter.BrandID)
	}
	if filter.ActionCode != "" {
		add("action_code = $%d", filter.ActionCode)
	}
	if filter.AgentType != "" {
		add("agent_type = $%d", filter.AgentType)
	}
	if filter.Provider != "" {
		add("provider = $%d", filter.Provider)
	}
	if filter.Model != "" {
		add("model = $%d", filter.Model)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.RequestedFrom != nil {
		add("requested_at >= $%d", *filter.RequestedFrom)
	}
	if filter.RequestedTo != nil {
		add("requested_at < $%d", *filter.RequestedTo)
	}

	query := `SELECT * FROM audit_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY requested_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var requests []audit.Request
	err := r.db.SelectContext(ctx, &requests, query, args...)
	if err != nil {
		return nil, err
	}

	return requests, nil
}
