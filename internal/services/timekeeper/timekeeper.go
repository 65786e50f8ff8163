// Package timekeeper provides the node's combined monotonic/wall-clock time
// source. Uptime is always valid; epoch time is only trusted once the system
// clock looks synced, so batches produced before NTP settles fall back to
// uptime-based identity.
package timekeeper

import "time"

// Clock is the time source consumed by the delivery and registration paths.
type Clock interface {
	// MonotonicMs is milliseconds since boot (of this process).
	MonotonicMs() int64
	// EpochMsOrZero is Unix epoch milliseconds, or 0 when wall-clock time is
	// not trustworthy yet.
	EpochMsOrZero() int64
	// BootEpochMs is the epoch timestamp of boot, or 0 when not synced.
	BootEpochMs() int64
	Synced() bool
}

// minPlausibleEpochMs: anything earlier means the wall clock was never set
// (RTC-less boards boot in 1970).
const minPlausibleEpochMs = 1_577_836_800_000 // 2020-01-01T00:00:00Z

// SystemClock implements Clock on top of the OS clocks.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) MonotonicMs() int64 {
	return time.Since(c.start).Milliseconds()
}

func (c *SystemClock) Synced() bool {
	return time.Now().UnixMilli() >= minPlausibleEpochMs
}

func (c *SystemClock) EpochMsOrZero() int64 {
	now := time.Now().UnixMilli()
	if now < minPlausibleEpochMs {
		return 0
	}
	return now
}

func (c *SystemClock) BootEpochMs() int64 {
	epoch := c.EpochMsOrZero()
	if epoch == 0 {
		return 0
	}
	return epoch - c.MonotonicMs()
}
