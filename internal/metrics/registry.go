package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the routing domain instruments. Instruments are created
// once at startup from the global meter provider, so a disabled telemetry
// setup yields no-op instruments and recording stays unconditional.
type Registry struct {
	meter metric.Meter

	// Assignment flow
	AssignmentDuration  metric.Float64Histogram
	AssignmentsTotal    metric.Int64Counter
	ReassignmentsTotal  metric.Int64Counter
	DuplicateDeliveries metric.Int64Counter
}

// NewRegistry creates the instruments under the given meter name.
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	var err error
	r.AssignmentDuration, err = r.meter.Float64Histogram(
		"leadline.assignment.duration",
		metric.WithDescription("End to end lead assignment latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	r.AssignmentsTotal, err = r.meter.Int64Counter(
		"leadline.assignment.total",
		metric.WithDescription("Committed assignment decisions by status and reason"),
	)
	if err != nil {
		return nil, err
	}

	r.ReassignmentsTotal, err = r.meter.Int64Counter(
		"leadline.assignment.reassignments_total",
		metric.WithDescription("Committed reassignment decisions by status and reason"),
	)
	if err != nil {
		return nil, err
	}

	r.DuplicateDeliveries, err = r.meter.Int64Counter(
		"leadline.ingest.duplicate_deliveries_total",
		metric.WithDescription("Webhook deliveries answered from an already stored lead"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// RecordAssignment counts one committed assignment decision. Duplicate
// deliveries are counted separately so rotation dashboards see only
// decisions that moved the pointer.
func (r *Registry) RecordAssignment(ctx context.Context, status, reason string, duplicate bool, d time.Duration) {
	if duplicate {
		r.DuplicateDeliveries.Add(ctx, 1)
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("reason", reason),
	)
	r.AssignmentsTotal.Add(ctx, 1, attrs)
	r.AssignmentDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordReassignment counts one committed reassignment decision.
func (r *Registry) RecordReassignment(ctx context.Context, status, reason string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("reason", reason),
	)
	r.ReassignmentsTotal.Add(ctx, 1, attrs)
	r.AssignmentDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}
