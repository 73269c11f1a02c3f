package fixtures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairdial/leadline-backend/internal/domain/caller"
)

// CallerBuilder builds caller entities for tests.
type CallerBuilder struct {
	t          *testing.T
	name       string
	role       *string
	languages  []string
	dailyLimit int
	states     []string
	paused     bool
}

// NewCallerBuilder returns a builder for an active caller with no state
// bindings and no daily cap.
func NewCallerBuilder(t *testing.T) *CallerBuilder {
	t.Helper()
	return &CallerBuilder{
		t:         t,
		name:      "Test Caller",
		languages: []string{"en"},
	}
}

// WithName sets the caller name.
func (b *CallerBuilder) WithName(name string) *CallerBuilder {
	b.name = name
	return b
}

// WithRole sets the free text role label.
func (b *CallerBuilder) WithRole(role string) *CallerBuilder {
	b.role = &role
	return b
}

// WithLanguages replaces the language list.
func (b *CallerBuilder) WithLanguages(languages ...string) *CallerBuilder {
	b.languages = languages
	return b
}

// WithDailyLimit sets the per-day cap. Zero means unlimited.
func (b *CallerBuilder) WithDailyLimit(limit int) *CallerBuilder {
	b.dailyLimit = limit
	return b
}

// WithStates binds the caller to the given states.
func (b *CallerBuilder) WithStates(states ...string) *CallerBuilder {
	b.states = states
	return b
}

// Paused builds the caller in paused status.
func (b *CallerBuilder) Paused() *CallerBuilder {
	b.paused = true
	return b
}

// Build creates the caller entity.
func (b *CallerBuilder) Build() *caller.Caller {
	b.t.Helper()

	c, err := caller.NewCaller(b.name)
	require.NoError(b.t, err)

	require.NoError(b.t, c.UpdateProfile(b.name, b.role, b.languages))
	require.NoError(b.t, c.SetDailyLimit(b.dailyLimit))
	c.AssignStates(b.states)
	if b.paused {
		c.Pause()
	}
	return c
}
