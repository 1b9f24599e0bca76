package security

import "time"

// Clock abstracts wall-clock access so expiry logic is deterministically
// testable. Production code uses SystemClock; tests inject a mock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock
type SystemClock struct{}

// Now returns the current system time
func (SystemClock) Now() time.Time { return time.Now() }

const (
	// DefaultClockSkewGracePeriod is the default grace period for token
	// expiration checks. It prevents false expiration errors due to time
	// synchronization drift between the server and its backing store.
	//
	// Trade-off: a token can be used up to 5 seconds beyond its true
	// expiration. Acceptable for the fixed TTLs in this server; reduce for
	// high-security deployments.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpiredAt checks whether expiresAt has passed relative to now, with the
// default clock skew grace period.
func IsExpiredAt(now, expiresAt time.Time) bool {
	return IsExpiredAtWithGracePeriod(now, expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredAtWithGracePeriod checks whether expiresAt has passed relative to
// now with a custom grace period. A zero expiresAt never expires.
func IsExpiredAtWithGracePeriod(now, expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.After(expiresAt.Add(gracePeriod))
}
