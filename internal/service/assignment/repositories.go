package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
)

// LeadStore writes and reads leads inside the assignment transaction.
type LeadStore interface {
	// Insert persists the lead keyed by (phone, source timestamp). When a
	// lead with the same key already exists no row is written and the
	// stored lead is returned with created=false.
	Insert(ctx context.Context, l *lead.Lead) (stored *lead.Lead, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error)
}

// AssignmentStore writes assignment rows and reads the current row per lead.
type AssignmentStore interface {
	Insert(ctx context.Context, a *assignment.Assignment) error
	// CurrentForLead returns the lead's live assignment row, or nil when
	// the lead has none.
	CurrentForLead(ctx context.Context, leadID uuid.UUID) (*assignment.Assignment, error)
	// Supersede flips the row's status so a replacement can become current.
	Supersede(ctx context.Context, id uuid.UUID) error
}

// CallerDirectory reads callers in the stable rotation order
// (creation time, then id).
type CallerDirectory interface {
	// ActiveForState returns active callers serving the normalized state.
	ActiveForState(ctx context.Context, state string) ([]*caller.Caller, error)
	// ActiveAll returns every active caller.
	ActiveAll(ctx context.Context) ([]*caller.Caller, error)
	GetByID(ctx context.Context, id uuid.UUID) (*caller.Caller, error)
}

// FairnessStore holds one rotation pointer per routing key. LockAndRead
// takes a row-level exclusive lock that lives until the enclosing
// transaction ends; concurrent assignments sharing a key serialize here.
type FairnessStore interface {
	// LockAndRead locks the pointer row for the key, creating it empty if
	// absent, and returns the caller who received the previous lead (nil
	// when the key has never assigned).
	LockAndRead(ctx context.Context, key routing.Key) (*uuid.UUID, error)
	// Write records the winning caller under the already-held lock.
	Write(ctx context.Context, key routing.Key, callerID uuid.UUID) error
}

// CounterStore tracks per-caller assignment counts by business date. Rows
// are per caller, so counters for different callers never block each other.
type CounterStore interface {
	// LockAndRead locks the (caller, date) row, creating it at zero if
	// absent, and returns the current count.
	LockAndRead(ctx context.Context, callerID uuid.UUID, day time.Time) (int, error)
	Increment(ctx context.Context, callerID uuid.UUID, day time.Time) error
	// Decrement lowers the count, flooring at zero.
	Decrement(ctx context.Context, callerID uuid.UUID, day time.Time) error
}

// Stores bundles the per-transaction view of everything the engine touches.
// All five share one transaction, so locks taken through any of them hold
// until the bundle's transaction commits or rolls back.
type Stores interface {
	Leads() LeadStore
	Assignments() AssignmentStore
	Callers() CallerDirectory
	Pointers() FairnessStore
	Counters() CounterStore
}

// TxRunner opens a transaction, hands the engine a Stores view bound to it,
// and commits when fn returns nil. Any error rolls back; conflict and
// deadlock failures come back marked retryable.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// Broadcaster fans committed assignment events out to dashboard
// subscribers. Implementations must not block the caller.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev assignment.Event)
}
