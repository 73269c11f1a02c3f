package instrumentation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/infrastructure/telemetry"
	"github.com/fairdial/leadline-backend/internal/metrics"
	assignmentsvc "github.com/fairdial/leadline-backend/internal/service/assignment"
)

// AssignmentService wraps the assignment service with spans and domain
// metrics. The wrapped service stays oblivious to telemetry, which keeps
// the engine testable without a meter provider.
type AssignmentService struct {
	service assignmentsvc.Service
	tracer  trace.Tracer
	metrics *metrics.Registry
}

// NewAssignmentService instruments svc. A nil registry records spans only.
func NewAssignmentService(svc assignmentsvc.Service, registry *metrics.Registry) *AssignmentService {
	return &AssignmentService{
		service: svc,
		tracer:  telemetry.Tracer("service.assignment"),
		metrics: registry,
	}
}

// AssignLead traces and measures one ingest decision.
func (s *AssignmentService) AssignLead(ctx context.Context, l *lead.Lead) (assignment.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.AssignLead",
		trace.WithAttributes(attribute.String("lead.id", l.ID.String())))
	defer span.End()

	start := time.Now()
	outcome, err := s.service.AssignLead(ctx, l)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return outcome, err
	}

	s.annotate(span, outcome)
	if s.metrics != nil {
		s.metrics.RecordAssignment(ctx, outcome.Status.String(), outcome.Reason.String(), outcome.Duplicate, time.Since(start))
	}
	return outcome, nil
}

// ReassignLead traces and measures one reroute decision.
func (s *AssignmentService) ReassignLead(ctx context.Context, leadID uuid.UUID, target *uuid.UUID) (assignment.Outcome, error) {
	attrs := []attribute.KeyValue{
		attribute.String("lead.id", leadID.String()),
		attribute.Bool("reassign.manual", target != nil),
	}
	if target != nil {
		attrs = append(attrs, attribute.String("reassign.target_caller_id", target.String()))
	}
	ctx, span := s.tracer.Start(ctx, "assignment.ReassignLead", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	outcome, err := s.service.ReassignLead(ctx, leadID, target)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return outcome, err
	}

	s.annotate(span, outcome)
	if s.metrics != nil {
		s.metrics.RecordReassignment(ctx, outcome.Status.String(), outcome.Reason.String(), time.Since(start))
	}
	return outcome, nil
}

func (s *AssignmentService) annotate(span trace.Span, o assignment.Outcome) {
	span.SetAttributes(
		attribute.String("assignment.status", o.Status.String()),
		attribute.String("assignment.reason", o.Reason.String()),
		attribute.Bool("assignment.duplicate", o.Duplicate),
	)
	if o.CallerID != nil {
		span.SetAttributes(attribute.String("assignment.caller_id", o.CallerID.String()))
	}
}
