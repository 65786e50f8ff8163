package delivery

import (
	"context"
	"log"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/datamanager"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/watchdog"
)

// Source produces raw readings; the simulator implements it, a hardware
// reader would too.
type Source interface {
	Next(monotonicMs int64) model.SensorReadings
	LinkRSSI() int
}

type RunConfig struct {
	Source         Source
	Store          datamanager.BlobStore
	SampleInterval time.Duration
	FlushInterval  time.Duration
	SaveInterval   time.Duration
	Watchdog       *watchdog.Watchdog
}

// Run is the node's main loop: sample on the tick, flush the backlog and
// persist state on slower ticks, and poll registration retries throughout.
// Blocks until ctx is cancelled, then persists state one last time.
func (c *Coordinator) Run(ctx context.Context, cfg RunConfig) {
	if c.reg != nil && !c.reg.IsRegistered() {
		c.reg.Register(ctx)
	}

	sample := time.NewTicker(cfg.SampleInterval)
	defer sample.Stop()
	flush := time.NewTicker(cfg.FlushInterval)
	defer flush.Stop()
	save := time.NewTicker(cfg.SaveInterval)
	defer save.Stop()

	for {
		select {
		case <-ctx.Done():
			c.persist(cfg.Store)
			return

		case <-sample.C:
			if cfg.Watchdog != nil {
				cfg.Watchdog.Kick()
			}
			r := cfg.Source.Next(c.clock.MonotonicMs())
			c.status.SetLinkRSSI(cfg.Source.LinkRSSI())
			c.HandleReading(ctx, r)
			if c.reg != nil {
				c.reg.ProcessRetries(ctx)
			}

		case <-flush.C:
			c.FlushQueued(ctx)

		case <-save.C:
			c.persist(cfg.Store)
		}
	}
}

func (c *Coordinator) persist(store datamanager.BlobStore) {
	if store == nil {
		return
	}
	if err := datamanager.SaveState(store, c.queue, c.history); err != nil {
		log.Printf("delivery: persist state: %v", err)
	}
}
