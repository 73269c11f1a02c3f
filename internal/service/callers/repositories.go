package callers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/caller"
)

// Repository persists caller configuration and reads the daily load
// accumulated by the assignment engine.
type Repository interface {
	Create(ctx context.Context, c *caller.Caller) error
	GetByID(ctx context.Context, id uuid.UUID) (*caller.Caller, error)
	Update(ctx context.Context, c *caller.Caller) error
	// List returns every caller in the stable rotation order
	// (creation time, then id).
	List(ctx context.Context) ([]*caller.Caller, error)
	// CountFor returns the caller's assignment count for the business date.
	CountFor(ctx context.Context, callerID uuid.UUID, day time.Time) (int, error)
	// CountsOn returns per-caller assignment counts for the business date.
	CountsOn(ctx context.Context, day time.Time) (map[uuid.UUID]int, error)
}
