package client

import "time"

// NextDelay returns the wait before reconnection attempt number attempt,
// doubling from base each time. Attempts count from zero, so the first retry
// waits exactly base.
func NextDelay(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	return base << uint(attempt)
}

// ShouldRetry reports whether a reconnection attempt numbered attempt fits
// within the maxAttempts budget.
func ShouldRetry(attempt, maxAttempts int) bool {
	return attempt < maxAttempts
}
