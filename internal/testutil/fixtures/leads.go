package fixtures

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/values"
)

// phoneSeq hands out distinct default phones so two built leads never
// collide on the dedup key by accident.
var phoneSeq atomic.Int64

func nextPhone() string {
	return fmt.Sprintf("+9198765%05d", phoneSeq.Add(1))
}

// LeadBuilder builds lead entities for tests.
type LeadBuilder struct {
	t         *testing.T
	phone     string
	timestamp time.Time
	name      *string
	source    *string
	city      *string
	state     *string
	metadata  map[string]interface{}
}

// NewLeadBuilder returns a builder with a unique phone and a fixed
// source timestamp.
func NewLeadBuilder(t *testing.T) *LeadBuilder {
	t.Helper()
	return &LeadBuilder{
		t:         t,
		phone:     nextPhone(),
		timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// WithPhone sets the raw phone number.
func (b *LeadBuilder) WithPhone(phone string) *LeadBuilder {
	b.phone = phone
	return b
}

// WithTimestamp sets the source timestamp half of the dedup key.
func (b *LeadBuilder) WithTimestamp(ts time.Time) *LeadBuilder {
	b.timestamp = ts
	return b
}

// WithName sets the prospect name.
func (b *LeadBuilder) WithName(name string) *LeadBuilder {
	b.name = &name
	return b
}

// WithSource sets the lead source label.
func (b *LeadBuilder) WithSource(source string) *LeadBuilder {
	b.source = &source
	return b
}

// WithCity sets the city.
func (b *LeadBuilder) WithCity(city string) *LeadBuilder {
	b.city = &city
	return b
}

// WithState sets the raw state as a webhook would deliver it.
func (b *LeadBuilder) WithState(state string) *LeadBuilder {
	b.state = &state
	return b
}

// WithMetadata replaces the metadata map.
func (b *LeadBuilder) WithMetadata(md map[string]interface{}) *LeadBuilder {
	b.metadata = md
	return b
}

// Build creates the lead entity.
func (b *LeadBuilder) Build() *lead.Lead {
	b.t.Helper()

	phone, err := values.NewPhone(b.phone)
	require.NoError(b.t, err)

	l, err := lead.NewLead(phone, b.timestamp)
	require.NoError(b.t, err)

	l.Name = b.name
	l.LeadSource = b.source
	l.City = b.city
	l.State = b.state
	if b.metadata != nil {
		l.Metadata = b.metadata
	}
	return l
}
