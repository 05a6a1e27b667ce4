package clock

import "time"

// Clock supplies the current instant. The engine never reads the wall clock
// directly so tests can run against a fixed time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the OS clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// New returns the production clock.
func New() Clock {
	return SystemClock{}
}
