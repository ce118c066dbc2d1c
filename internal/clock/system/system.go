// Package system supplies the wall-clock implementation of ingest.Clock.
package system

import "time"

// Clock reads the system wall clock.
type Clock struct{}

// New returns a Clock.
func New() Clock {
	return Clock{}
}

// Now reports the current instant normalized to UTC, so persisted
// timestamps compare consistently regardless of host timezone.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
