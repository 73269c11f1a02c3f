package caller

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/routing"
	"github.com/fairdial/leadline-backend/internal/domain/validation"
)

// Caller is a human sales agent who receives leads.
type Caller struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role *string   `json:"role,omitempty"`

	// Languages are stored for the operator UI; routing never consults
	// them.
	Languages []string `json:"languages"`

	// DailyLimit caps assignments per business date. Zero means unlimited.
	DailyLimit int `json:"daily_limit"`

	// States holds normalized state bindings. Empty means the caller is
	// eligible for global routing only.
	States []string `json:"states"`

	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusActive Status = iota
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire/database representation back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "paused":
		return StatusPaused, nil
	default:
		return 0, fmt.Errorf("unknown caller status: %q", s)
	}
}

// NewCaller creates an active caller with no state bindings and no cap.
func NewCaller(name string) (*Caller, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, fmt.Errorf("invalid name: %w", err)
	}

	now := time.Now()
	return &Caller{
		ID:        uuid.New(),
		Name:      name,
		Languages: []string{},
		States:    []string{},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateProfile replaces the mutable profile fields.
func (c *Caller) UpdateProfile(name string, role *string, languages []string) error {
	if err := validation.ValidateName(name); err != nil {
		return fmt.Errorf("invalid name: %w", err)
	}
	if role != nil {
		if err := validation.ValidateRole(*role); err != nil {
			return err
		}
	}
	if err := validation.ValidateLanguages(languages); err != nil {
		return err
	}

	c.Name = name
	c.Role = role
	if languages == nil {
		languages = []string{}
	}
	c.Languages = languages
	c.UpdatedAt = time.Now()
	return nil
}

// SetDailyLimit updates the per-day cap. Zero removes the cap.
func (c *Caller) SetDailyLimit(limit int) error {
	if err := validation.ValidateDailyLimit(limit); err != nil {
		return err
	}
	c.DailyLimit = limit
	c.UpdatedAt = time.Now()
	return nil
}

// AssignStates replaces the caller's state bindings. Inputs are
// normalized and deduplicated; blanks are dropped.
func (c *Caller) AssignStates(states []string) {
	normalized := make([]string, 0, len(states))
	seen := make(map[string]struct{}, len(states))
	for _, s := range states {
		n := routing.NormalizeState(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	c.States = normalized
	c.UpdatedAt = time.Now()
}

// Pause stops new assignments. Existing assignments remain intact and the
// daily counter is left untouched.
func (c *Caller) Pause() {
	c.Status = StatusPaused
	c.UpdatedAt = time.Now()
}

// Activate resumes assignments. The day's counter persists across a
// pause/activate cycle, so prior assignments still count against the cap.
func (c *Caller) Activate() {
	c.Status = StatusActive
	c.UpdatedAt = time.Now()
}

// IsActive reports whether the caller can receive new assignments.
func (c *Caller) IsActive() bool {
	return c.Status == StatusActive
}

// ServesState reports whether the caller is bound to the given state.
func (c *Caller) ServesState(state string) bool {
	n := routing.NormalizeState(state)
	for _, s := range c.States {
		if s == n {
			return true
		}
	}
	return false
}

// CanAcceptLead applies the cap rule to the caller's count for the
// business date in question.
func (c *Caller) CanAcceptLead(assignedToday int) bool {
	return c.DailyLimit == 0 || assignedToday < c.DailyLimit
}
