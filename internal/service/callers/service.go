package callers

import (
	"context"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
)

// Service manages caller configuration. Mutations go through the domain
// entity so validation and normalization stay in one place; reads are
// enriched with the caller's load for the current business date.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Summary, error)
	Get(ctx context.Context, id uuid.UUID) (*Summary, error)
	List(ctx context.Context) ([]*Summary, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Summary, error)
	SetStatus(ctx context.Context, id uuid.UUID, status caller.Status) (*Summary, error)
	// Deactivate is the delete operation: callers are never removed, only
	// paused, so assignment history stays attributable.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// CreateInput carries a new caller's configuration.
type CreateInput struct {
	Name       string
	Role       *string
	Languages  []string
	DailyLimit int
	States     []string
	Paused     bool
}

// UpdateInput carries a partial update; nil fields are left unchanged.
// An empty (non-nil) Languages or States slice clears the binding.
type UpdateInput struct {
	Name       *string
	Role       *string
	Languages  []string
	DailyLimit *int
	States     []string
	Status     *caller.Status
}

// Summary pairs a caller with the number of leads assigned to them on the
// current business date.
type Summary struct {
	Caller             *caller.Caller
	LeadsAssignedToday int
}

type service struct {
	repo Repository
	cal  *routing.Calendar
}

// NewService wires caller management to its repository and the business
// calendar used for load reporting.
func NewService(repo Repository, cal *routing.Calendar) Service {
	return &service{repo: repo, cal: cal}
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Summary, error) {
	c, err := caller.NewCaller(input.Name)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_CALLER", err.Error())
	}
	if err := c.UpdateProfile(input.Name, input.Role, input.Languages); err != nil {
		return nil, errors.NewValidationError("INVALID_CALLER", err.Error())
	}
	if err := c.SetDailyLimit(input.DailyLimit); err != nil {
		return nil, errors.NewValidationError("INVALID_DAILY_LIMIT", err.Error())
	}
	c.AssignStates(input.States)
	if input.Paused {
		c.Pause()
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	// A caller created today has no assignments yet.
	return &Summary{Caller: c, LeadsAssignedToday: 0}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Summary, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, c)
}

func (s *service) List(ctx context.Context) ([]*Summary, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountsOn(ctx, s.cal.Today())
	if err != nil {
		return nil, err
	}

	out := make([]*Summary, 0, len(all))
	for _, c := range all {
		out = append(out, &Summary{Caller: c, LeadsAssignedToday: counts[c.ID]})
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Summary, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := c.Name
	if input.Name != nil {
		name = *input.Name
	}
	role := c.Role
	if input.Role != nil {
		role = input.Role
	}
	languages := c.Languages
	if input.Languages != nil {
		languages = input.Languages
	}
	if err := c.UpdateProfile(name, role, languages); err != nil {
		return nil, errors.NewValidationError("INVALID_CALLER", err.Error())
	}

	if input.DailyLimit != nil {
		if err := c.SetDailyLimit(*input.DailyLimit); err != nil {
			return nil, errors.NewValidationError("INVALID_DAILY_LIMIT", err.Error())
		}
	}
	if input.States != nil {
		c.AssignStates(input.States)
	}
	if input.Status != nil {
		s.applyStatus(c, *input.Status)
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.summarize(ctx, c)
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status caller.Status) (*Summary, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.applyStatus(c, status)

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.summarize(ctx, c)
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	c.Pause()
	return s.repo.Update(ctx, c)
}

func (s *service) applyStatus(c *caller.Caller, status caller.Status) {
	if status == caller.StatusActive {
		c.Activate()
		return
	}
	c.Pause()
}

func (s *service) summarize(ctx context.Context, c *caller.Caller) (*Summary, error) {
	n, err := s.repo.CountFor(ctx, c.ID, s.cal.Today())
	if err != nil {
		return nil, err
	}
	return &Summary{Caller: c, LeadsAssignedToday: n}, nil
}
