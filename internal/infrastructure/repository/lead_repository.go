package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domassign "github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/infrastructure/database"
	"github.com/fairdial/leadline-backend/internal/service/leads"
)

// LeadRepository is the dashboard read model: leads joined with their
// current assignment and the assigned caller's name.
type LeadRepository struct {
	pool *database.Pool
}

func NewLeadRepository(pool *database.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

const detailColumns = `
	SELECT l.id, l.name, l.phone, l.source_timestamp, l.lead_source, l.city, l.state, l.metadata, l.created_at,
	       a.id, a.lead_id, a.caller_id, a.assigned_at, a.reason, a.status, a.created_at,
	       c.name`

const detailJoins = `
	FROM leads l
	LEFT JOIN assignments a ON a.lead_id = l.id AND a.status <> 'superseded'
	LEFT JOIN callers c ON c.id = a.caller_id`

func (r *LeadRepository) GetWithAssignment(ctx context.Context, id uuid.UUID) (*leads.Detail, error) {
	row := r.pool.QueryRow(ctx, detailColumns+detailJoins+` WHERE l.id = $1`, id)
	d, err := scanDetail(row)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrLeadNotFound
	}
	return d, err
}

func (r *LeadRepository) List(ctx context.Context, filter leads.ListFilter) ([]*leads.Detail, error) {
	query := detailColumns + detailJoins

	var (
		where []string
		args  []any
	)
	if filter.State != nil {
		args = append(args, *filter.State)
		where = append(where, fmt.Sprintf("lower(trim(l.state)) = $%d", len(args)))
	}
	if filter.CallerID != nil {
		args = append(args, *filter.CallerID)
		where = append(where, fmt.Sprintf("a.caller_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		where = append(where, fmt.Sprintf("a.status = $%d::assignment_status", len(args)))
	}
	if filter.Search != nil {
		args = append(args, "%"+*filter.Search+"%")
		where = append(where, fmt.Sprintf("(l.phone ILIKE $%d OR l.name ILIKE $%d)", len(args), len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY l.created_at DESC, l.id LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []*leads.Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return out, nil
}

func scanDetail(row rowScanner) (*leads.Detail, error) {
	var (
		l        lead.Lead
		metadata []byte

		aID         *uuid.UUID
		aLeadID     *uuid.UUID
		aCallerID   *uuid.UUID
		aAssignedAt *time.Time
		aReason     *string
		aStatus     *string
		aCreatedAt  *time.Time
		callerName  *string
	)
	err := row.Scan(
		&l.ID, &l.Name, &l.Phone, &l.SourceTimestamp,
		&l.LeadSource, &l.City, &l.State, &metadata, &l.CreatedAt,
		&aID, &aLeadID, &aCallerID, &aAssignedAt, &aReason, &aStatus, &aCreatedAt,
		&callerName,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan lead detail: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal lead metadata: %w", err)
		}
	}
	if l.Metadata == nil {
		l.Metadata = map[string]interface{}{}
	}

	d := &leads.Detail{Lead: &l}
	if aID == nil {
		return d, nil
	}

	status, err := domassign.ParseStatus(*aStatus)
	if err != nil {
		return nil, fmt.Errorf("scan lead detail: %w", err)
	}
	d.Assignment = &domassign.Assignment{
		ID:         *aID,
		LeadID:     *aLeadID,
		CallerID:   aCallerID,
		AssignedAt: *aAssignedAt,
		Reason:     domassign.Reason(*aReason),
		Status:     status,
		CreatedAt:  *aCreatedAt,
	}
	d.CallerName = callerName
	return d, nil
}
