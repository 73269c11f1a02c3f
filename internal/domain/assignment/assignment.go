package assignment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reason is the closed set of assignment reason codes. Values are
// persisted and exposed on the wire verbatim.
type Reason string

const (
	ReasonStateRoundRobin  Reason = "state_round_robin"
	ReasonGlobalRoundRobin Reason = "global_round_robin"
	ReasonManualReassign   Reason = "manual_reassign"
	ReasonCapReached       Reason = "unassigned_cap_reached"
	ReasonNoEligible       Reason = "unassigned_no_eligible"
)

func (r Reason) String() string {
	return string(r)
}

// IsValid reports whether the reason belongs to the closed set.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonStateRoundRobin, ReasonGlobalRoundRobin, ReasonManualReassign,
		ReasonCapReached, ReasonNoEligible:
		return true
	}
	return false
}

// Assigns reports whether the reason corresponds to a caller being chosen.
func (r Reason) Assigns() bool {
	switch r {
	case ReasonStateRoundRobin, ReasonGlobalRoundRobin, ReasonManualReassign:
		return true
	}
	return false
}

// Status tracks an assignment row's lifecycle.
type Status int

const (
	StatusAssigned Status = iota
	StatusUnassigned
	StatusSuperseded
)

func (s Status) String() string {
	switch s {
	case StatusAssigned:
		return "assigned"
	case StatusUnassigned:
		return "unassigned"
	case StatusSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// ParseStatus maps the database representation back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "assigned":
		return StatusAssigned, nil
	case "unassigned":
		return StatusUnassigned, nil
	case "superseded":
		return StatusSuperseded, nil
	default:
		return 0, fmt.Errorf("unknown assignment status: %q", s)
	}
}

// Assignment binds a lead to a caller (or records that no caller was
// available). Every lead has exactly one current row; manual reassignment
// supersedes the old row and inserts a new one, keeping the audit trail.
type Assignment struct {
	ID         uuid.UUID  `json:"id"`
	LeadID     uuid.UUID  `json:"lead_id"`
	CallerID   *uuid.UUID `json:"caller_id,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
	Reason     Reason     `json:"reason"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewAssigned creates a current row binding the lead to a caller.
func NewAssigned(leadID, callerID uuid.UUID, reason Reason, at time.Time) (*Assignment, error) {
	if !reason.IsValid() || !reason.Assigns() {
		return nil, fmt.Errorf("reason %q does not describe an assignment", reason)
	}
	if leadID == uuid.Nil {
		return nil, fmt.Errorf("lead id is required")
	}
	if callerID == uuid.Nil {
		return nil, fmt.Errorf("caller id is required")
	}

	return &Assignment{
		ID:         uuid.New(),
		LeadID:     leadID,
		CallerID:   &callerID,
		AssignedAt: at.UTC(),
		Reason:     reason,
		Status:     StatusAssigned,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// NewUnassigned creates a current row recording that no caller received
// the lead. The lead is still persisted so nothing is lost.
func NewUnassigned(leadID uuid.UUID, reason Reason, at time.Time) (*Assignment, error) {
	if !reason.IsValid() || reason.Assigns() {
		return nil, fmt.Errorf("reason %q does not describe an unassigned outcome", reason)
	}
	if leadID == uuid.Nil {
		return nil, fmt.Errorf("lead id is required")
	}

	return &Assignment{
		ID:         uuid.New(),
		LeadID:     leadID,
		CallerID:   nil,
		AssignedAt: at.UTC(),
		Reason:     reason,
		Status:     StatusUnassigned,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Supersede marks the row as replaced by a newer assignment.
func (a *Assignment) Supersede() {
	a.Status = StatusSuperseded
}

// IsCurrent reports whether the row is the lead's live assignment.
func (a *Assignment) IsCurrent() bool {
	return a.Status != StatusSuperseded
}
