package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"calliope/internal/domain/generation"
	"calliope/pkg/errors"
)

// Compile-time check
var _ generation.Repository = (*GenerationJobRepository)(nil)

// GenerationJobRepository implements generation.Repository using sqlx.
// Every mutation guards on status NOT IN ('completed','failed') so terminal
// jobs are immutable at the database level, not just in service code.
type GenerationJobRepository struct {
	db DBTX
}

// NewGenerationJobRepository creates a new generation job repository
func NewGenerationJobRepository(db DBTX) *GenerationJobRepository {
	return &GenerationJobRepository{db: db}
}

// Create inserts a new job in status started
func (r *GenerationJobRepository) Create(ctx context.Context, job *generation.Job) error {
	query := `
		INSERT INTO generation_jobs (
			id, user_id, brand_id, post_id, pipeline, prompt, slide_count,
			status, current_step, last_progress,
			total_tokens, total_cost_usd, total_images, execution_count,
			artifacts, error_message, created_at, updated_at, completed_at
		) VALUES (
			:id, :user_id, :brand_id, :post_id, :pipeline, :prompt, :slide_count,
			:status, :current_step, :last_progress,
			:total_tokens, :total_cost_usd, :total_images, :execution_count,
			:artifacts, :error_message, :created_at, :updated_at, :completed_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, job)
	return err
}

// GetByID loads a job
func (r *GenerationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*generation.Job, error) {
	var job generation.Job

	query := `SELECT * FROM generation_jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrJobNotFound
		}
		return nil, err
	}

	return &job, nil
}

// UpdateProgress overwrites the job's latest snapshot, current step and status
func (r *GenerationJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, status generation.Status, step generation.Step, snapshot []byte) error {
	query := `
		UPDATE generation_jobs SET
			status = $2,
			current_step = $3,
			last_progress = $4,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`

	result, err := r.db.ExecContext(ctx, query, id, status, step, snapshot)
	if err != nil {
		return err
	}

	return r.checkMutated(result)
}

// AddTotals folds one execution's usage into the job's running totals
func (r *GenerationJobRepository) AddTotals(ctx context.Context, id uuid.UUID, tokens int64, costUSD float64, images int64) error {
	query := `
		UPDATE generation_jobs SET
			total_tokens = total_tokens + $2,
			total_cost_usd = total_cost_usd + $3,
			total_images = total_images + $4,
			execution_count = execution_count + 1,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`

	result, err := r.db.ExecContext(ctx, query, id, tokens, costUSD, images)
	if err != nil {
		return err
	}

	return r.checkMutated(result)
}

// Complete marks the job completed and stores its artifacts
func (r *GenerationJobRepository) Complete(ctx context.Context, id uuid.UUID, artifacts []byte, snapshot []byte, at time.Time) error {
	query := `
		UPDATE generation_jobs SET
			status = 'completed',
			artifacts = $2,
			last_progress = $3,
			completed_at = $4,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`

	result, err := r.db.ExecContext(ctx, query, id, artifacts, snapshot, at)
	if err != nil {
		return err
	}

	return r.checkMutated(result)
}

// Fail marks the job failed with a human-readable message
func (r *GenerationJobRepository) Fail(ctx context.Context, id uuid.UUID, message string, snapshot []byte, at time.Time) error {
	query := `
		UPDATE generation_jobs SET
			status = 'failed',
			error_message = $2,
			last_progress = $3,
			completed_at = $4,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`

	result, err := r.db.ExecContext(ctx, query, id, message, snapshot, at)
	if err != nil {
		return err
	}

	return r.checkMutated(result)
}

// checkMutated distinguishes "job missing or terminal" from success.
func (r *GenerationJobRepository) checkMutated(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.ErrJobTerminal
	}
	return nil
}
