package rest

import (
	"time"

	"github.com/google/uuid"

	domassign "github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/service/callers"
	"github.com/fairdial/leadline-backend/internal/service/leads"
)

// LeadWebhookRequest is the inbound lead payload. Timestamp is the
// source system's capture time and half of the dedup key.
type LeadWebhookRequest struct {
	Name       *string                `json:"name"`
	Phone      string                 `json:"phone" validate:"required"`
	Timestamp  time.Time              `json:"timestamp" validate:"required"`
	LeadSource *string                `json:"lead_source"`
	City       *string                `json:"city"`
	State      *string                `json:"state"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type CallerCreateRequest struct {
	Name           string   `json:"name" validate:"required,max=120"`
	Role           *string  `json:"role" validate:"omitempty,max=120"`
	Languages      []string `json:"languages"`
	DailyLimit     int      `json:"daily_limit" validate:"gte=0"`
	AssignedStates []string `json:"assigned_states"`
	Status         *string  `json:"status" validate:"omitempty,oneof=active paused"`
}

type CallerUpdateRequest struct {
	Name           *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Role           *string  `json:"role" validate:"omitempty,max=120"`
	Languages      []string `json:"languages"`
	DailyLimit     *int     `json:"daily_limit" validate:"omitempty,gte=0"`
	AssignedStates []string `json:"assigned_states"`
	Status         *string  `json:"status" validate:"omitempty,oneof=active paused"`
}

type CallerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused"`
}

type LeadReassignRequest struct {
	// CallerID forces the lead to a specific active caller; nil re-runs
	// automatic selection.
	CallerID *uuid.UUID `json:"caller_id"`
}

type CallerResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Role               *string   `json:"role"`
	Languages          []string  `json:"languages"`
	DailyLimit         int       `json:"daily_limit"`
	AssignedStates     []string  `json:"assigned_states"`
	LeadsAssignedToday int       `json:"leads_assigned_today"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

func newCallerResponse(s *callers.Summary) CallerResponse {
	return CallerResponse{
		ID:                 s.Caller.ID,
		Name:               s.Caller.Name,
		Role:               s.Caller.Role,
		Languages:          s.Caller.Languages,
		DailyLimit:         s.Caller.DailyLimit,
		AssignedStates:     s.Caller.States,
		LeadsAssignedToday: s.LeadsAssignedToday,
		Status:             s.Caller.Status.String(),
		CreatedAt:          s.Caller.CreatedAt,
	}
}

// LeadResponse is the full lead representation returned by the webhook,
// the detail endpoint, and reassignment.
type LeadResponse struct {
	ID               uuid.UUID              `json:"id"`
	Name             *string                `json:"name"`
	Phone            string                 `json:"phone"`
	LeadSource       *string                `json:"lead_source"`
	City             *string                `json:"city"`
	State            *string                `json:"state"`
	Metadata         map[string]interface{} `json:"metadata"`
	CreatedAt        time.Time              `json:"created_at"`
	AssignedCallerID *uuid.UUID             `json:"assigned_caller_id"`
	AssignedCaller   *string                `json:"assigned_caller_name,omitempty"`
	AssignmentStatus *string                `json:"assignment_status"`
	AssignmentReason *string                `json:"assignment_reason"`
	Duplicate        bool                   `json:"duplicate,omitempty"`
}

func newLeadResponse(o domassign.Outcome) LeadResponse {
	status := o.Status.String()
	reason := o.Reason.String()
	resp := LeadResponse{
		AssignedCallerID: o.CallerID,
		AssignedCaller:   o.CallerName,
		AssignmentStatus: &status,
		AssignmentReason: &reason,
		Duplicate:        o.Duplicate,
	}
	if o.Lead != nil {
		resp.ID = o.Lead.ID
		resp.Name = o.Lead.Name
		resp.Phone = o.Lead.Phone.String()
		resp.LeadSource = o.Lead.LeadSource
		resp.City = o.Lead.City
		resp.State = o.Lead.State
		resp.Metadata = o.Lead.Metadata
		resp.CreatedAt = o.Lead.CreatedAt
	} else {
		resp.ID = o.LeadID
	}
	return resp
}

func newLeadDetailResponse(d *leads.Detail) LeadResponse {
	resp := LeadResponse{
		ID:         d.Lead.ID,
		Name:       d.Lead.Name,
		Phone:      d.Lead.Phone.String(),
		LeadSource: d.Lead.LeadSource,
		City:       d.Lead.City,
		State:      d.Lead.State,
		Metadata:   d.Lead.Metadata,
		CreatedAt:  d.Lead.CreatedAt,
	}
	if d.Assignment != nil {
		status := d.Assignment.Status.String()
		reason := d.Assignment.Reason.String()
		resp.AssignedCallerID = d.Assignment.CallerID
		resp.AssignedCaller = d.CallerName
		resp.AssignmentStatus = &status
		resp.AssignmentReason = &reason
	}
	return resp
}

// LeadListItem is the compact listing row for the dashboard table.
type LeadListItem struct {
	ID                 uuid.UUID  `json:"id"`
	Name               *string    `json:"name"`
	Phone              string     `json:"phone"`
	State              *string    `json:"state"`
	LeadSource         *string    `json:"lead_source"`
	AssignedCallerID   *uuid.UUID `json:"assigned_caller_id"`
	AssignedCallerName *string    `json:"assigned_caller_name"`
	AssignmentStatus   *string    `json:"assignment_status"`
	AssignmentReason   *string    `json:"assignment_reason"`
	AssignedAt         *time.Time `json:"assigned_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

func newLeadListItem(d *leads.Detail) LeadListItem {
	item := LeadListItem{
		ID:         d.Lead.ID,
		Name:       d.Lead.Name,
		Phone:      d.Lead.Phone.String(),
		State:      d.Lead.State,
		LeadSource: d.Lead.LeadSource,
		CreatedAt:  d.Lead.CreatedAt,
	}
	if d.Assignment != nil {
		status := d.Assignment.Status.String()
		reason := d.Assignment.Reason.String()
		assignedAt := d.Assignment.AssignedAt
		item.AssignedCallerID = d.Assignment.CallerID
		item.AssignedCallerName = d.CallerName
		item.AssignmentStatus = &status
		item.AssignmentReason = &reason
		item.AssignedAt = &assignedAt
	}
	return item
}
