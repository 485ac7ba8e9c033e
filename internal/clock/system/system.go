// Package system provides the wall clock used to stamp records.
package system

import "time"

// Precision is the resolution of stamped times. It matches Postgres
// TIMESTAMPTZ, so a stored record reads back equal to the emitted one.
const Precision = time.Microsecond

// Clock implements harvest.Clock in UTC at Precision.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}
