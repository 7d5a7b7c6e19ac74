package auth

import "time"

// Clock supplies the current time for token issuance, expiry and
// throttling checks.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock
type ClockFunc func() time.Time

// Now satisfies the Clock interface
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now satisfies the Clock interface
func (SystemClock) Now() time.Time { return time.Now() }

func normalizeClock(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
