package assignment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
)

// maxTxAttempts bounds how often a conflicted assignment transaction is
// replayed before the failure surfaces to the transport.
const maxTxAttempts = 3

// Service is the transactional surface around the engine: each call runs in
// its own transaction, replays bounded times on serialization conflicts,
// and publishes the committed outcome to the broadcaster.
type Service interface {
	// AssignLead persists the lead and routes it to a caller.
	AssignLead(ctx context.Context, l *lead.Lead) (assignment.Outcome, error)
	// ReassignLead re-routes an existing lead, automatically when target is
	// nil or to the given active caller otherwise.
	ReassignLead(ctx context.Context, leadID uuid.UUID, target *uuid.UUID) (assignment.Outcome, error)
}

type service struct {
	tx     TxRunner
	engine *Engine
	events Broadcaster
	logger *slog.Logger
}

// NewService wires the engine to its transaction runner and event sink.
func NewService(tx TxRunner, engine *Engine, events Broadcaster, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		tx:     tx,
		engine: engine,
		events: events,
		logger: logger,
	}
}

func (s *service) AssignLead(ctx context.Context, l *lead.Lead) (assignment.Outcome, error) {
	outcome, err := s.runWithRetry(ctx, "assign", func(ctx context.Context, st Stores) (assignment.Outcome, error) {
		return s.engine.Assign(ctx, st, l)
	})
	if err != nil {
		return assignment.Outcome{}, err
	}

	if outcome.Duplicate {
		s.logger.InfoContext(ctx, "duplicate lead delivery, returning prior outcome",
			"lead_id", outcome.LeadID, "reason", outcome.Reason)
		return outcome, nil
	}

	s.logger.InfoContext(ctx, "lead assignment committed",
		"lead_id", outcome.LeadID,
		"status", outcome.Status.String(),
		"reason", outcome.Reason)
	s.publish(ctx, outcome)
	return outcome, nil
}

func (s *service) ReassignLead(ctx context.Context, leadID uuid.UUID, target *uuid.UUID) (assignment.Outcome, error) {
	outcome, err := s.runWithRetry(ctx, "reassign", func(ctx context.Context, st Stores) (assignment.Outcome, error) {
		return s.engine.Reassign(ctx, st, leadID, target)
	})
	if err != nil {
		return assignment.Outcome{}, err
	}

	s.logger.InfoContext(ctx, "lead reassignment committed",
		"lead_id", outcome.LeadID,
		"status", outcome.Status.String(),
		"reason", outcome.Reason)
	s.publish(ctx, outcome)
	return outcome, nil
}

// runWithRetry executes fn in a fresh transaction, replaying it on
// retryable conflicts. Each attempt sees a clean Stores view, so a replay
// observes whatever the winning transaction committed.
func (s *service) runWithRetry(ctx context.Context, op string, fn func(context.Context, Stores) (assignment.Outcome, error)) (assignment.Outcome, error) {
	var outcome assignment.Outcome
	for attempt := 1; ; attempt++ {
		err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
			var err error
			outcome, err = fn(ctx, st)
			return err
		})
		if err == nil {
			return outcome, nil
		}
		if attempt >= maxTxAttempts || !errors.IsRetryable(err) {
			return assignment.Outcome{}, err
		}
		if ctx.Err() != nil {
			return assignment.Outcome{}, err
		}

		s.logger.WarnContext(ctx, "assignment transaction conflicted, retrying",
			"operation", op,
			"attempt", attempt,
			"error", err)
	}
}

func (s *service) publish(ctx context.Context, outcome assignment.Outcome) {
	if s.events == nil {
		return
	}
	s.events.Broadcast(ctx, assignment.NewEvent(outcome))
}
