package engine

import "time"

// Clock supplies the current instant to the engine. Tests inject a fake to
// get deterministic, monotonically-advancing timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, reading the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
