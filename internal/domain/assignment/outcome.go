package assignment

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/lead"
)

// Outcome is the engine's answer for one lead: either a caller plus the
// rotation (or manual) reason that picked them, or an unassigned reason.
// CallerID is nil exactly when the lead went unassigned.
type Outcome struct {
	// Lead is the stored row the decision applies to. On duplicate
	// deliveries this is the original row, not the retried payload.
	Lead *lead.Lead

	LeadID     uuid.UUID
	CallerID   *uuid.UUID
	CallerName *string
	Status     Status
	Reason     Reason
	Instant    time.Time

	// Duplicate is set when an idempotent retry hit an existing lead and
	// the prior outcome was returned unchanged.
	Duplicate bool
}

// Assigned reports whether a caller received the lead.
func (o Outcome) Assigned() bool {
	return o.Status == StatusAssigned
}

// OutcomeOf reconstructs the outcome a persisted assignment row represents.
// The caller name travels separately because assignments store only the id.
func OutcomeOf(a *Assignment, callerName *string, l *lead.Lead) Outcome {
	return Outcome{
		Lead:       l,
		LeadID:     a.LeadID,
		CallerID:   a.CallerID,
		CallerName: callerName,
		Status:     a.Status,
		Reason:     a.Reason,
		Instant:    a.AssignedAt,
	}
}

// Event is the payload broadcast to dashboard subscribers after an
// assignment decision commits.
type Event struct {
	LeadID     uuid.UUID  `json:"lead_id"`
	CallerID   *uuid.UUID `json:"caller_id"`
	CallerName *string    `json:"caller_name,omitempty"`
	Status     string     `json:"assignment_status"`
	Reason     string     `json:"assignment_reason"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewEvent shapes an outcome for broadcast.
func NewEvent(o Outcome) Event {
	return Event{
		LeadID:     o.LeadID,
		CallerID:   o.CallerID,
		CallerName: o.CallerName,
		Status:     o.Status.String(),
		Reason:     o.Reason.String(),
		Timestamp:  o.Instant,
	}
}
