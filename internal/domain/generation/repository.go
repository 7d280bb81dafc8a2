package generation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists generation jobs.
type Repository interface {
	// Create inserts a new job in status started.
	Create(ctx context.Context, job *Job) error

	// GetByID loads a job.
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// UpdateProgress overwrites the job's latest snapshot, current step and
	// status. It must not touch terminal jobs.
	UpdateProgress(ctx context.Context, id uuid.UUID, status Status, step Step, snapshot []byte) error

	// AddTotals folds one execution's usage into the job's running totals.
	AddTotals(ctx context.Context, id uuid.UUID, tokens int64, costUSD float64, images int64) error

	// Complete marks the job completed and stores its artifacts.
	Complete(ctx context.Context, id uuid.UUID, artifacts []byte, snapshot []byte, at time.Time) error

	// Fail marks the job failed with a human-readable message.
	Fail(ctx context.Context, id uuid.UUID, message string, snapshot []byte, at time.Time) error
}
