package lead

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/routing"
	"github.com/fairdial/leadline-backend/internal/domain/values"
)

// Lead is an inbound sales prospect record. Leads are created once at
// ingestion and immutable thereafter; only their assignment changes.
type Lead struct {
	ID   uuid.UUID `json:"id"`
	Name *string   `json:"name,omitempty"`

	// Phone and SourceTimestamp form the natural key that deduplicates
	// repeated webhook deliveries.
	Phone           values.Phone `json:"phone"`
	SourceTimestamp time.Time    `json:"source_timestamp"`

	LeadSource *string                `json:"lead_source,omitempty"`
	City       *string                `json:"city,omitempty"`
	State      *string                `json:"state,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}

// NewLead creates a lead from the validated ingress record.
func NewLead(phone values.Phone, sourceTimestamp time.Time) (*Lead, error) {
	if phone.IsEmpty() {
		return nil, fmt.Errorf("lead phone is required")
	}
	if sourceTimestamp.IsZero() {
		return nil, fmt.Errorf("lead source timestamp is required")
	}

	return &Lead{
		ID:              uuid.New(),
		Phone:           phone,
		SourceTimestamp: sourceTimestamp.UTC(),
		Metadata:        map[string]interface{}{},
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// RoutingState returns the normalized state and whether the lead has one.
// Leads without a usable state route globally.
func (l *Lead) RoutingState() (string, bool) {
	if l.State == nil {
		return "", false
	}
	s := routing.NormalizeState(*l.State)
	if s == "" {
		return "", false
	}
	return s, true
}
