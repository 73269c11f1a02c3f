package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domassign "github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
	"github.com/fairdial/leadline-backend/internal/infrastructure/database"
	"github.com/fairdial/leadline-backend/internal/service/assignment"
)

// Runner executes assignment transactions against the pool. Failures are
// classified on the way out so serialization conflicts and deadlocks reach
// the service layer marked retryable.
type Runner struct {
	pool *database.Pool
}

// NewRunner builds the production TxRunner.
func NewRunner(pool *database.Pool) *Runner {
	return &Runner{pool: pool}
}

// InTx opens a transaction, hands fn a Stores view bound to it, and
// commits when fn returns nil.
func (r *Runner) InTx(ctx context.Context, fn func(ctx context.Context, s assignment.Stores) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &txStores{tx: tx})
	})
	return database.Classify(err)
}

// txStores is the per-transaction Stores bundle. Every store shares the
// same pgx.Tx, so row locks taken by one are held for all.
type txStores struct {
	tx pgx.Tx
}

func (s *txStores) Leads() assignment.LeadStore             { return &txLeadStore{tx: s.tx} }
func (s *txStores) Assignments() assignment.AssignmentStore { return &txAssignmentStore{tx: s.tx} }
func (s *txStores) Callers() assignment.CallerDirectory     { return &txCallerDirectory{tx: s.tx} }
func (s *txStores) Pointers() assignment.FairnessStore      { return &txFairnessStore{tx: s.tx} }
func (s *txStores) Counters() assignment.CounterStore       { return &txCounterStore{tx: s.tx} }

type txLeadStore struct {
	tx pgx.Tx
}

func (s *txLeadStore) Insert(ctx context.Context, l *lead.Lead) (*lead.Lead, bool, error) {
	metadata, err := json.Marshal(l.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("marshal lead metadata: %w", err)
	}

	query := `
		INSERT INTO leads (id, name, phone, source_timestamp, lead_source, city, state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (phone, source_timestamp) DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err = s.tx.QueryRow(ctx, query,
		l.ID, l.Name, l.Phone, l.SourceTimestamp,
		l.LeadSource, l.City, l.State, metadata, l.CreatedAt,
	).Scan(&id)
	if err == nil {
		return l, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, fmt.Errorf("insert lead: %w", err)
	}

	// The natural key already exists; hand back the stored lead.
	existing, err := s.getByKey(ctx, l.Phone.String(), l.SourceTimestamp)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *txLeadStore) GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	row := s.tx.QueryRow(ctx, leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrLeadNotFound
	}
	return l, err
}

func (s *txLeadStore) getByKey(ctx context.Context, phone string, sourceTimestamp time.Time) (*lead.Lead, error) {
	row := s.tx.QueryRow(ctx,
		leadColumns+` FROM leads WHERE phone = $1 AND source_timestamp = $2`,
		phone, sourceTimestamp)
	l, err := scanLead(row)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrLeadNotFound
	}
	return l, err
}

type txAssignmentStore struct {
	tx pgx.Tx
}

func (s *txAssignmentStore) Insert(ctx context.Context, a *domassign.Assignment) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO assignments (id, lead_id, caller_id, assigned_at, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.LeadID, a.CallerID, a.AssignedAt, a.Reason.String(), a.Status.String(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (s *txAssignmentStore) CurrentForLead(ctx context.Context, leadID uuid.UUID) (*domassign.Assignment, error) {
	row := s.tx.QueryRow(ctx, assignmentColumns+`
		FROM assignments WHERE lead_id = $1 AND status <> 'superseded'`,
		leadID)
	a, err := scanAssignment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *txAssignmentStore) Supersede(ctx context.Context, id uuid.UUID) error {
	tag, err := s.tx.Exec(ctx,
		`UPDATE assignments SET status = 'superseded' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("supersede assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("assignment")
	}
	return nil
}

type txCallerDirectory struct {
	tx pgx.Tx
}

func (s *txCallerDirectory) ActiveForState(ctx context.Context, state string) ([]*caller.Caller, error) {
	rows, err := s.tx.Query(ctx, callerColumns+`
		FROM callers c
		WHERE c.status = 'active'
		  AND EXISTS (SELECT 1 FROM caller_states cs WHERE cs.caller_id = c.id AND cs.state = $1)
		ORDER BY c.created_at, c.id`,
		routing.NormalizeState(state))
	if err != nil {
		return nil, fmt.Errorf("query state candidates: %w", err)
	}
	defer rows.Close()
	return collectCallers(rows)
}

func (s *txCallerDirectory) ActiveAll(ctx context.Context) ([]*caller.Caller, error) {
	rows, err := s.tx.Query(ctx, callerColumns+`
		FROM callers c
		WHERE c.status = 'active'
		ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("query global candidates: %w", err)
	}
	defer rows.Close()
	return collectCallers(rows)
}

func (s *txCallerDirectory) GetByID(ctx context.Context, id uuid.UUID) (*caller.Caller, error) {
	row := s.tx.QueryRow(ctx, callerColumns+` FROM callers c WHERE c.id = $1`, id)
	c, err := scanCaller(row)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrCallerNotFound
	}
	return c, err
}

type txFairnessStore struct {
	tx pgx.Tx
}

func (s *txFairnessStore) LockAndRead(ctx context.Context, key routing.Key) (*uuid.UUID, error) {
	// Create the pointer row on first use so the lock below always has a
	// row to land on.
	_, err := s.tx.Exec(ctx, `
		INSERT INTO rr_pointers (key, last_caller_id) VALUES ($1, NULL)
		ON CONFLICT (key) DO NOTHING`,
		key.String())
	if err != nil {
		return nil, fmt.Errorf("ensure pointer row: %w", err)
	}

	var last *uuid.UUID
	err = s.tx.QueryRow(ctx,
		`SELECT last_caller_id FROM rr_pointers WHERE key = $1 FOR UPDATE`,
		key.String()).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("lock pointer %s: %w", key, err)
	}
	return last, nil
}

func (s *txFairnessStore) Write(ctx context.Context, key routing.Key, callerID uuid.UUID) error {
	_, err := s.tx.Exec(ctx,
		`UPDATE rr_pointers SET last_caller_id = $2, updated_at = now() WHERE key = $1`,
		key.String(), callerID)
	if err != nil {
		return fmt.Errorf("write pointer %s: %w", key, err)
	}
	return nil
}

type txCounterStore struct {
	tx pgx.Tx
}

func (s *txCounterStore) LockAndRead(ctx context.Context, callerID uuid.UUID, day time.Time) (int, error) {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO daily_counters (caller_id, business_date, count) VALUES ($1, $2, 0)
		ON CONFLICT (caller_id, business_date) DO NOTHING`,
		callerID, day)
	if err != nil {
		return 0, fmt.Errorf("ensure counter row: %w", err)
	}

	var count int
	err = s.tx.QueryRow(ctx, `
		SELECT count FROM daily_counters
		WHERE caller_id = $1 AND business_date = $2 FOR UPDATE`,
		callerID, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("lock counter: %w", err)
	}
	return count, nil
}

func (s *txCounterStore) Increment(ctx context.Context, callerID uuid.UUID, day time.Time) error {
	// Upsert form so the manual-override path works without a prior
	// LockAndRead on the row.
	_, err := s.tx.Exec(ctx, `
		INSERT INTO daily_counters (caller_id, business_date, count) VALUES ($1, $2, 1)
		ON CONFLICT (caller_id, business_date) DO UPDATE SET count = daily_counters.count + 1`,
		callerID, day)
	if err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

func (s *txCounterStore) Decrement(ctx context.Context, callerID uuid.UUID, day time.Time) error {
	_, err := s.tx.Exec(ctx, `
		UPDATE daily_counters SET count = GREATEST(count - 1, 0)
		WHERE caller_id = $1 AND business_date = $2`,
		callerID, day)
	if err != nil {
		return fmt.Errorf("decrement counter: %w", err)
	}
	return nil
}
