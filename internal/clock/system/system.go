// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock in a fixed location. Dump headers are
// stamped with this clock, so the location decides their time zone.
type Clock struct {
	loc *time.Location
}

// New returns a clock in loc. A nil loc means the host's local zone.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc}
}

// NewUTC returns a clock reporting UTC.
func NewUTC() *Clock {
	return New(time.UTC)
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	if c == nil || c.loc == nil {
		return time.Now()
	}
	return time.Now().In(c.loc)
}

// Location reports the zone the clock reports in.
func (c *Clock) Location() *time.Location {
	if c == nil || c.loc == nil {
		return time.Local
	}
	return c.loc
}
