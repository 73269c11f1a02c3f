package leads

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ListFilter narrows the lead listing. Nil fields are ignored.
type ListFilter struct {
	// State matches the lead's state after normalization.
	State *string
	// CallerID matches the caller on the lead's current assignment.
	CallerID *uuid.UUID
	// Status matches the current assignment's status.
	Status *assignment.Status
	// Search matches phone or name, case-insensitively, as a substring.
	Search *string

	Limit  int
	Offset int
}

// Detail is a lead together with its current assignment, enriched with the
// assigned caller's name for display.
type Detail struct {
	Lead       *lead.Lead
	Assignment *assignment.Assignment
	CallerName *string
}

// Reader is the read model over leads and their current assignments.
type Reader interface {
	GetWithAssignment(ctx context.Context, id uuid.UUID) (*Detail, error)
	// List returns details ordered by lead creation time, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Detail, error)
}

// Service answers dashboard queries about leads.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, filter ListFilter) ([]*Detail, error)
}

type service struct {
	reader Reader
}

// NewService wires the query surface to its read model.
func NewService(reader Reader) Service {
	return &service{reader: reader}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return s.reader.GetWithAssignment(ctx, id)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]*Detail, error) {
	return s.reader.List(ctx, normalizeFilter(filter))
}

// normalizeFilter clamps paging and normalizes the state so filters match
// the stored representation.
func normalizeFilter(f ListFilter) ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.State != nil {
		n := routing.NormalizeState(*f.State)
		if n == "" {
			f.State = nil
		} else {
			f.State = &n
		}
	}
	if f.Search != nil {
		trimmed := strings.TrimSpace(*f.Search)
		if trimmed == "" {
			f.Search = nil
		} else {
			f.Search = &trimmed
		}
	}
	return f
}
