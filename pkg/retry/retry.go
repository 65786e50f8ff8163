// Package retry holds the backoff calculator and status-code classifier
// shared by the telemetry upload and device registration paths.
package retry

import (
	"math/rand"
	"net/http"
	"time"
)

const (
	// MaxAttempts is the total attempt budget per cycle, for both telemetry
	// upload and registration.
	MaxAttempts = 5

	baseDelay = 1000 * time.Millisecond
	maxDelay  = 30000 * time.Millisecond
	maxJitter = 500 * time.Millisecond
)

// BackoffDelay returns the wait before retry number attempt (zero-based):
// 1s, 2s, 4s, 8s, 16s, then clamped at 30s, plus a uniform jitter in
// [0, 500] ms so a fleet of nodes does not retry in lockstep.
func BackoffDelay(attempt int) time.Duration {
	d := maxDelay
	if attempt < 0 {
		attempt = 0
	}
	if attempt < 5 {
		d = baseDelay << uint(attempt)
	}
	if d > maxDelay {
		d = maxDelay
	}
	jitter := time.Duration(rand.Intn(int(maxJitter/time.Millisecond)+1)) * time.Millisecond
	return d + jitter
}

// ShouldRetry classifies an HTTP status. Timeouts (408), throttling (429) and
// server errors are worth retrying; other client errors are not. A
// non-positive code means the request never produced a status (transport
// failure) and is always retryable.
func ShouldRetry(statusCode int) bool {
	if statusCode <= 0 {
		return true
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}
