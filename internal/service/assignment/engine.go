package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
)

// Engine decides which caller receives a lead. It runs entirely inside a
// transaction supplied by the caller through a Stores bundle; every lock it
// takes is released when that transaction ends.
//
// Selection walks the state-scoped rotation first, then the global one.
// The cap check is deferred: a candidate's counter is locked only after the
// rotation tentatively chooses it, so a full walk locks counters one at a
// time instead of all upfront.
type Engine struct {
	cal *routing.Calendar
}

// NewEngine creates an engine that accounts daily caps against the
// calendar's business date.
func NewEngine(cal *routing.Calendar) *Engine {
	return &Engine{cal: cal}
}

// Assign persists the lead and selects a caller for it. The lead and an
// assignment row are written even when no caller is available, so nothing
// is dropped. When the lead's (phone, source timestamp) key already exists
// the previously committed outcome is returned unchanged, with no counter
// or pointer motion.
func (e *Engine) Assign(ctx context.Context, s Stores, l *lead.Lead) (assignment.Outcome, error) {
	stored, created, err := s.Leads().Insert(ctx, l)
	if err != nil {
		return assignment.Outcome{}, err
	}
	if !created {
		return e.priorOutcome(ctx, s, stored)
	}

	now := e.cal.Now()
	day := e.cal.BusinessDate(now)

	chosen, reason, err := e.pick(ctx, s, stored, day)
	if err != nil {
		return assignment.Outcome{}, err
	}

	return e.record(ctx, s, stored, chosen, reason, now)
}

// Reassign re-routes an existing lead. A nil target re-runs automatic
// selection with the lead's state; a concrete target must be active and
// bypasses both rotation and caps. The previous assignment row is
// superseded so the lead keeps exactly one current row, and the previous
// caller's counter is released only when the original assignment happened
// on the current business date.
func (e *Engine) Reassign(ctx context.Context, s Stores, leadID uuid.UUID, target *uuid.UUID) (assignment.Outcome, error) {
	l, err := s.Leads().GetByID(ctx, leadID)
	if err != nil {
		return assignment.Outcome{}, err
	}

	prev, err := s.Assignments().CurrentForLead(ctx, leadID)
	if err != nil {
		return assignment.Outcome{}, err
	}

	now := e.cal.Now()
	day := e.cal.BusinessDate(now)

	var (
		chosen *caller.Caller
		reason assignment.Reason
	)
	if target != nil {
		c, err := s.Callers().GetByID(ctx, *target)
		if err != nil {
			return assignment.Outcome{}, err
		}
		if !c.IsActive() {
			return assignment.Outcome{}, errors.NewBusinessError("CALLER_PAUSED",
				"caller is paused and cannot receive leads").
				WithDetails(map[string]interface{}{"caller_id": c.ID})
		}
		chosen, reason = c, assignment.ReasonManualReassign
	} else {
		chosen, reason, err = e.pick(ctx, s, l, day)
		if err != nil {
			return assignment.Outcome{}, err
		}
	}

	if prev != nil {
		if prev.CallerID != nil && e.cal.BusinessDate(prev.AssignedAt).Equal(day) {
			if err := s.Counters().Decrement(ctx, *prev.CallerID, day); err != nil {
				return assignment.Outcome{}, err
			}
		}
		if err := s.Assignments().Supersede(ctx, prev.ID); err != nil {
			return assignment.Outcome{}, err
		}
	}

	// Automatic selection already incremented inside the walk; the manual
	// path accounts for its caller here.
	if target != nil && chosen != nil {
		if err := s.Counters().Increment(ctx, chosen.ID, day); err != nil {
			return assignment.Outcome{}, err
		}
	}

	return e.record(ctx, s, l, chosen, reason, now)
}

// pick runs the two-phase selection: state rotation when the lead carries a
// state served by at least one active caller, then the global rotation.
// A nil caller means no one was selected and reason holds why.
func (e *Engine) pick(ctx context.Context, s Stores, l *lead.Lead, day time.Time) (*caller.Caller, assignment.Reason, error) {
	if state, ok := l.RoutingState(); ok {
		cands, err := s.Callers().ActiveForState(ctx, state)
		if err != nil {
			return nil, "", err
		}
		// The state pointer is locked only when state candidates exist;
		// otherwise the lead never touches that key.
		if len(cands) > 0 {
			key, _ := routing.StateKey(state)
			chosen, err := e.walk(ctx, s, key, cands, day)
			if err != nil {
				return nil, "", err
			}
			if chosen != nil {
				return chosen, assignment.ReasonStateRoundRobin, nil
			}
		}
	}

	cands, err := s.Callers().ActiveAll(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(cands) == 0 {
		return nil, assignment.ReasonNoEligible, nil
	}

	chosen, err := e.walk(ctx, s, routing.GlobalKey, cands, day)
	if err != nil {
		return nil, "", err
	}
	if chosen == nil {
		return nil, assignment.ReasonCapReached, nil
	}
	return chosen, assignment.ReasonGlobalRoundRobin, nil
}

// walk locks the rotation pointer for key, rotates the candidates so the
// one after the previous winner goes first, and returns the first candidate
// under its daily cap. The pointer advances only when someone is selected;
// a fully capped walk leaves it untouched so fairness is not spent on
// capacity failures.
func (e *Engine) walk(ctx context.Context, s Stores, key routing.Key, cands []*caller.Caller, day time.Time) (*caller.Caller, error) {
	last, err := s.Pointers().LockAndRead(ctx, key)
	if err != nil {
		return nil, err
	}

	for _, c := range rotateAfter(cands, last) {
		n, err := s.Counters().LockAndRead(ctx, c.ID, day)
		if err != nil {
			return nil, err
		}
		if !c.CanAcceptLead(n) {
			continue
		}
		if err := s.Counters().Increment(ctx, c.ID, day); err != nil {
			return nil, err
		}
		if err := s.Pointers().Write(ctx, key, c.ID); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, nil
}

// record writes the assignment row for the decision and shapes the outcome.
func (e *Engine) record(ctx context.Context, s Stores, l *lead.Lead, chosen *caller.Caller, reason assignment.Reason, at time.Time) (assignment.Outcome, error) {
	var (
		a   *assignment.Assignment
		err error
	)
	if chosen != nil {
		a, err = assignment.NewAssigned(l.ID, chosen.ID, reason, at)
	} else {
		a, err = assignment.NewUnassigned(l.ID, reason, at)
	}
	if err != nil {
		return assignment.Outcome{}, errors.NewInternalError("failed to build assignment").WithCause(err)
	}

	if err := s.Assignments().Insert(ctx, a); err != nil {
		return assignment.Outcome{}, err
	}

	var name *string
	if chosen != nil {
		name = &chosen.Name
	}
	return assignment.OutcomeOf(a, name, l), nil
}

// priorOutcome reconstructs the committed outcome for a duplicate delivery.
func (e *Engine) priorOutcome(ctx context.Context, s Stores, stored *lead.Lead) (assignment.Outcome, error) {
	prev, err := s.Assignments().CurrentForLead(ctx, stored.ID)
	if err != nil {
		return assignment.Outcome{}, err
	}
	if prev == nil {
		return assignment.Outcome{}, errors.NewInternalError("lead exists without an assignment row").
			WithDetails(map[string]interface{}{"lead_id": stored.ID})
	}

	// Callers are never physically deleted, so an assigned row always
	// resolves to a name.
	var name *string
	if prev.CallerID != nil {
		c, err := s.Callers().GetByID(ctx, *prev.CallerID)
		if err != nil {
			return assignment.Outcome{}, err
		}
		name = &c.Name
	}

	outcome := assignment.OutcomeOf(prev, name, stored)
	outcome.Duplicate = true
	return outcome, nil
}

// rotateAfter orders candidates so the element following last comes first.
// When last is nil or no longer among the candidates the order is returned
// unrotated.
func rotateAfter(cands []*caller.Caller, last *uuid.UUID) []*caller.Caller {
	if last == nil || len(cands) == 0 {
		return cands
	}

	idx := -1
	for i, c := range cands {
		if c.ID == *last {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cands
	}

	start := (idx + 1) % len(cands)
	rotated := make([]*caller.Caller, 0, len(cands))
	rotated = append(rotated, cands[start:]...)
	rotated = append(rotated, cands[:start]...)
	return rotated
}
