package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Phone represents a normalized phone number value object.
//
// Leads arrive from sheet automations in whatever format the agent typed,
// so normalization is deliberately permissive: separators are stripped, a
// single leading + is kept, and the digit count is bounded. The normalized
// form is what the (phone, source_timestamp) idempotency key is built on,
// so two differently formatted deliveries of the same number dedupe to the
// same lead.
type Phone struct {
	number string
}

var phoneDigitsRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

// NewPhone creates a Phone value object, normalizing the raw input.
func NewPhone(raw string) (Phone, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Phone{}, fmt.Errorf("phone number cannot be empty")
	}

	cleaned := cleanPhone(trimmed)
	if !phoneDigitsRegex.MatchString(cleaned) {
		return Phone{}, fmt.Errorf("invalid phone number format: %s", raw)
	}

	return Phone{number: cleaned}, nil
}

// MustNewPhone creates a Phone and panics on error (for tests/fixtures).
func MustNewPhone(raw string) Phone {
	p, err := NewPhone(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the normalized phone number.
func (p Phone) String() string {
	return p.number
}

// IsEmpty checks if the phone number is empty.
func (p Phone) IsEmpty() bool {
	return p.number == ""
}

// Equal checks if two Phone values are equal.
func (p Phone) Equal(other Phone) bool {
	return p.number == other.number
}

// MarshalJSON implements JSON marshaling.
func (p Phone) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.number)
}

// UnmarshalJSON implements JSON unmarshaling.
func (p *Phone) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	phone, err := NewPhone(raw)
	if err != nil {
		return err
	}

	*p = phone
	return nil
}

// Value implements driver.Valuer for database storage.
func (p Phone) Value() (driver.Value, error) {
	if p.number == "" {
		return nil, nil
	}
	return p.number, nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *Phone) Scan(value interface{}) error {
	if value == nil {
		*p = Phone{}
		return nil
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Phone", value)
	}

	if str == "" {
		*p = Phone{}
		return nil
	}

	// Stored values are already normalized; trust them so historical rows
	// never fail to load.
	*p = Phone{number: str}
	return nil
}

func cleanPhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator, drop
		default:
			// Preserve the offending rune so validation rejects it.
			b.WriteRune(r)
		}
	}
	return b.String()
}
