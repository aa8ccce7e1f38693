package crypto

import "time"

// TimeProvider abstracts the clock used for nonce generation and
// freshness checks so tests can control time.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

// Now returns the current system time.
func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}
