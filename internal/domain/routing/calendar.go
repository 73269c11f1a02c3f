package routing

import (
	"fmt"
	"time"
)

// Calendar maps instants to business dates in one fixed IANA timezone.
// It is the only source of "today" for daily-cap arithmetic: the civil
// date in the configured zone, so DST transitions never double-count or
// skip a day.
type Calendar struct {
	loc   *time.Location
	clock Clock
}

// NewCalendar loads the timezone once at startup. An empty name means UTC.
func NewCalendar(timezone string, clock Clock) (*Calendar, error) {
	if clock == nil {
		clock = RealClock{}
	}
	if timezone == "" {
		return &Calendar{loc: time.UTC, clock: clock}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Calendar{loc: loc, clock: clock}, nil
}

// BusinessDate maps an instant to the civil date in the calendar's zone.
// The result is normalized to midnight UTC so it round-trips cleanly
// through a Postgres date column.
func (c *Calendar) BusinessDate(instant time.Time) time.Time {
	local := instant.In(c.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the business date of the current instant.
func (c *Calendar) Today() time.Time {
	return c.BusinessDate(c.clock.Now())
}

// Now returns the current instant from the injected clock.
func (c *Calendar) Now() time.Time {
	return c.clock.Now()
}

// Location exposes the configured zone for display formatting.
func (c *Calendar) Location() *time.Location {
	return c.loc
}
