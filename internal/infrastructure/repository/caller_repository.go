package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/infrastructure/database"
)

// CallerRepository persists caller configuration outside the assignment
// transaction. State bindings live in caller_states and are replaced
// wholesale on every write.
type CallerRepository struct {
	pool *database.Pool
}

func NewCallerRepository(pool *database.Pool) *CallerRepository {
	return &CallerRepository{pool: pool}
}

func (r *CallerRepository) Create(ctx context.Context, c *caller.Caller) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO callers (id, name, role, languages, daily_limit, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.Name, c.Role, c.Languages, c.DailyLimit,
			c.Status.String(), c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert caller: %w", err)
		}
		return replaceStates(ctx, tx, c.ID, c.States)
	})
	return database.Classify(err)
}

func (r *CallerRepository) GetByID(ctx context.Context, id uuid.UUID) (*caller.Caller, error) {
	row := r.pool.QueryRow(ctx, callerColumns+` FROM callers c WHERE c.id = $1`, id)
	c, err := scanCaller(row)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrCallerNotFound
	}
	return c, err
}

func (r *CallerRepository) Update(ctx context.Context, c *caller.Caller) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE callers
			SET name = $2, role = $3, languages = $4, daily_limit = $5, status = $6, updated_at = $7
			WHERE id = $1`,
			c.ID, c.Name, c.Role, c.Languages, c.DailyLimit,
			c.Status.String(), c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update caller: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.ErrCallerNotFound
		}
		return replaceStates(ctx, tx, c.ID, c.States)
	})
	return database.Classify(err)
}

func (r *CallerRepository) List(ctx context.Context) ([]*caller.Caller, error) {
	rows, err := r.pool.Query(ctx, callerColumns+` FROM callers c ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list callers: %w", err)
	}
	defer rows.Close()
	return collectCallers(rows)
}

func (r *CallerRepository) CountFor(ctx context.Context, callerID uuid.UUID, day time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count FROM daily_counters WHERE caller_id = $1 AND business_date = $2`,
		callerID, day).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return count, nil
}

func (r *CallerRepository) CountsOn(ctx context.Context, day time.Time) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT caller_id, count FROM daily_counters WHERE business_date = $1`, day)
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			id    uuid.UUID
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return counts, nil
}

// replaceStates rewrites the caller's state bindings inside the caller
// write transaction.
func replaceStates(ctx context.Context, tx pgx.Tx, callerID uuid.UUID, states []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM caller_states WHERE caller_id = $1`, callerID); err != nil {
		return fmt.Errorf("clear caller states: %w", err)
	}
	if len(states) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO caller_states (caller_id, state)
		SELECT $1, unnest($2::text[])`,
		callerID, states)
	if err != nil {
		return fmt.Errorf("insert caller states: %w", err)
	}
	return nil
}
