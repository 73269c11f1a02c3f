package repository

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	domassign "github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
)

// rowScanner lets the scan helpers serve both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const leadColumns = `
	SELECT id, name, phone, source_timestamp, lead_source, city, state, metadata, created_at`

func scanLead(row rowScanner) (*lead.Lead, error) {
	var (
		l        lead.Lead
		metadata []byte
	)
	err := row.Scan(
		&l.ID, &l.Name, &l.Phone, &l.SourceTimestamp,
		&l.LeadSource, &l.City, &l.State, &metadata, &l.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal lead metadata: %w", err)
		}
	}
	if l.Metadata == nil {
		l.Metadata = map[string]interface{}{}
	}
	return &l, nil
}

const assignmentColumns = `
	SELECT id, lead_id, caller_id, assigned_at, reason, status, created_at`

func scanAssignment(row rowScanner) (*domassign.Assignment, error) {
	var (
		a      domassign.Assignment
		reason string
		status string
	)
	err := row.Scan(
		&a.ID, &a.LeadID, &a.CallerID, &a.AssignedAt,
		&reason, &status, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	a.Reason = domassign.Reason(reason)
	a.Status, err = domassign.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	return &a, nil
}

const callerColumns = `
	SELECT c.id, c.name, c.role, c.languages, c.daily_limit, c.status, c.created_at, c.updated_at,
	       COALESCE((SELECT array_agg(cs.state ORDER BY cs.state)
	                 FROM caller_states cs WHERE cs.caller_id = c.id), '{}')`

func scanCaller(row rowScanner) (*caller.Caller, error) {
	var (
		c      caller.Caller
		status string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Role, &c.Languages, &c.DailyLimit,
		&status, &c.CreatedAt, &c.UpdatedAt, &c.States,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan caller: %w", err)
	}
	c.Status, err = caller.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan caller: %w", err)
	}
	if c.Languages == nil {
		c.Languages = []string{}
	}
	if c.States == nil {
		c.States = []string{}
	}
	return &c, nil
}

func collectCallers(rows pgx.Rows) ([]*caller.Caller, error) {
	var out []*caller.Caller
	for rows.Next() {
		c, err := scanCaller(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate callers: %w", err)
	}
	return out, nil
}
