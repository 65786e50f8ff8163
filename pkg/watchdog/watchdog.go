// Package watchdog is a software stall detector for long-running loops.
// The loop kicks it on every pass; a monitor goroutine logs when kicks stop
// arriving and invokes an optional callback so the caller can decide how to
// recover.
package watchdog

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

type Watchdog struct {
	name    string
	timeout time.Duration
	onStall func(elapsed time.Duration)

	lastKickNs atomic.Int64
}

func New(name string, timeout time.Duration, onStall func(elapsed time.Duration)) *Watchdog {
	w := &Watchdog{name: name, timeout: timeout, onStall: onStall}
	w.lastKickNs.Store(time.Now().UnixNano())
	return w
}

func (w *Watchdog) Kick() {
	w.lastKickNs.Store(time.Now().UnixNano())
}

// Run blocks until ctx is done, checking twice per timeout period.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Duration(time.Now().UnixNano() - w.lastKickNs.Load())
			if elapsed > w.timeout {
				log.Printf("watchdog: %s stalled for %s", w.name, elapsed.Round(time.Millisecond))
				if w.onStall != nil {
					w.onStall(elapsed)
				}
			}
		}
	}
}
