package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists audited AI calls.
// The write side is internal-only: rows are appended by the generation
// pipeline and never updated or deleted through this interface.
type Repository interface {
	// Append inserts one immutable audit row.
	Append(ctx context.Context, req *Request) error

	// GetByID returns a single audit row.
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// List returns audit rows matching the filter, newest request first.
	List(ctx context.Context, filter Filter) ([]Request, error)
}
