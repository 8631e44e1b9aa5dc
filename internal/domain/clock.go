package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps RaisedAt on alert records and ProcessedAt on assessments.
var clock = clockwork.NewRealClock()

// SetClock replaces the package time source. Pass nil to go back to wall time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time of the package clock in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}
