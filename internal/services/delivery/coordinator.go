// Package delivery owns the publish pipeline: it folds accumulated samples
// into a batch, stamps its identity, and moves batches between the uplink
// and the transmission queue so nothing is lost across connectivity gaps.
package delivery

import (
	"context"
	"log"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/datamanager"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/status"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/timekeeper"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/uplink"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/retry"
)

// Sender is the uplink surface the coordinator needs; *uplink.Client
// implements it.
type Sender interface {
	SendReadings(ctx context.Context, batch []model.AveragedData, status model.SystemStatus) uplink.SendResult
	VerifyConnectivity(ctx context.Context) bool
}

// Registrar drives device registration from the delivery loop.
// *registration.Manager implements it.
type Registrar interface {
	IsRegistered() bool
	Register(ctx context.Context) bool
	ProcessRetries(ctx context.Context)
}

// Mirror receives every raw reading for local fan-out. Optional.
type Mirror interface {
	MirrorReading(ctx context.Context, r model.SensorReadings, epochMs int64)
}

type Coordinator struct {
	deviceID string

	acc     *datamanager.Accumulator
	queue   *datamanager.TransmissionQueue
	history *datamanager.DisplayHistory
	sender  Sender
	reg     Registrar
	mirror  Mirror
	status  *status.Manager
	clock   timekeeper.Clock

	// sleep is the inter-attempt wait; tests replace it to run instantly.
	// Returns false when ctx was cancelled before the delay elapsed.
	sleep func(ctx context.Context, d time.Duration) bool
}

type Deps struct {
	DeviceID    string
	Accumulator *datamanager.Accumulator
	Queue       *datamanager.TransmissionQueue
	History     *datamanager.DisplayHistory
	Sender      Sender
	Registrar   Registrar
	Mirror      Mirror
	Status      *status.Manager
	Clock       timekeeper.Clock
}

func NewCoordinator(d Deps) *Coordinator {
	return &Coordinator{
		deviceID: d.DeviceID,
		acc:      d.Accumulator,
		queue:    d.Queue,
		history:  d.History,
		sender:   d.Sender,
		reg:      d.Registrar,
		mirror:   d.Mirror,
		status:   d.Status,
		clock:    d.Clock,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// HandleReading feeds one raw sample through the pipeline: display history,
// local mirror, averaging buffer, and a publish cycle once the buffer fills.
func (c *Coordinator) HandleReading(ctx context.Context, r model.SensorReadings) {
	c.history.AddSample(r)
	if c.mirror != nil {
		c.mirror.MirrorReading(ctx, r, c.clock.EpochMsOrZero())
	}
	if r.SensorStatus == 0 {
		c.status.RecordSensorReadFailure()
	}
	c.acc.AddReading(r)
	if c.acc.ShouldAggregate() {
		c.publishCycle(ctx)
	}
}

// publishCycle folds the buffer into a batch, clears it, and attempts
// delivery together with everything still queued.
func (c *Coordinator) publishCycle(ctx context.Context) {
	agg := c.acc.ComputeAggregate()
	c.acc.Clear()
	if agg.SampleCount == 0 {
		return
	}
	c.stampIdentity(&agg)

	log.Printf("delivery: batch %s ready (%d samples, %d queued)",
		agg.BatchID, agg.SampleCount, c.queue.Len())
	c.deliver(ctx, agg)
	c.syncStatus()
}

// stampIdentity assigns the batch id and epoch bounds. Uptime bounds come
// from the samples; epoch bounds are reconstructed from the boot epoch so a
// batch accumulated before NTP sync still gets correct wall-clock bounds.
func (c *Coordinator) stampIdentity(agg *model.AveragedData) {
	agg.TimeSynced = c.clock.Synced()
	agg.DeviceBootEpochMs = c.clock.BootEpochMs()
	if agg.TimeSynced && agg.DeviceBootEpochMs > 0 {
		agg.SampleStartEpochMs = agg.DeviceBootEpochMs + agg.SampleStartUptimeMs
		agg.SampleEndEpochMs = agg.DeviceBootEpochMs + agg.SampleEndUptimeMs
	}
	agg.BatchID = model.GenerateBatchID(c.deviceID,
		agg.SampleStartUptimeMs, agg.SampleEndUptimeMs,
		agg.SampleStartEpochMs, agg.SampleEndEpochMs, agg.TimeSynced)
}

// deliver sends current plus the queued backlog, retrying inline with
// backoff. On any terminal failure the current batch joins the queue; on
// success the server's acknowledgement list decides what leaves it.
func (c *Coordinator) deliver(ctx context.Context, current model.AveragedData) {
	batch := make([]model.AveragedData, 0, c.queue.Len()+1)
	batch = append(batch, current)
	batch = append(batch, c.queue.Snapshot()...)

	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		res := c.sender.SendReadings(ctx, batch, c.status.Snapshot())
		if res.OK() {
			c.applyAcks(current, res.AckedIDs)
			return
		}

		c.status.RecordNetworkFailure()
		if !res.Retryable() {
			log.Printf("delivery: status %d is not retryable, queueing batch %s",
				res.StatusCode, current.BatchID)
			break
		}
		if attempt < retry.MaxAttempts-1 {
			delay := retry.BackoffDelay(attempt)
			log.Printf("delivery: attempt %d/%d failed (status %d), retrying in %s",
				attempt+1, retry.MaxAttempts, res.StatusCode, delay)
			if !c.sleep(ctx, delay) {
				break
			}
		}
	}

	c.queue.Push(current)
}

// applyAcks evicts acknowledged batches. A server that accepted the upload
// but did not acknowledge the current batch gets it again with the next
// send, so it goes into the queue like everything else unacknowledged.
func (c *Coordinator) applyAcks(current model.AveragedData, ackedIDs []string) {
	c.queue.EvictAcknowledged(ackedIDs)
	currentAcked := false
	for _, id := range ackedIDs {
		if id == current.BatchID {
			currentAcked = true
			break
		}
	}
	if !currentAcked {
		c.queue.Push(current)
	}
	c.status.MarkTransmission(len(ackedIDs))
}

// FlushQueued drains the backlog opportunistically: one connectivity probe,
// one send. The periodic publish cycle remains the main delivery path.
func (c *Coordinator) FlushQueued(ctx context.Context) {
	if c.queue.Len() == 0 {
		return
	}
	if !c.sender.VerifyConnectivity(ctx) {
		return
	}

	batch := c.queue.Snapshot()
	res := c.sender.SendReadings(ctx, batch, c.status.Snapshot())
	if !res.OK() {
		c.status.RecordNetworkFailure()
		c.syncStatus()
		return
	}
	c.queue.EvictAcknowledged(res.AckedIDs)
	c.status.MarkTransmission(len(res.AckedIDs))
	log.Printf("delivery: flushed backlog, %d acknowledged, %d still queued",
		len(res.AckedIDs), c.queue.Len())
	c.syncStatus()
}

func (c *Coordinator) syncStatus() {
	c.status.SetQueueDepth(c.queue.Len())
	c.status.SetBufferOverflows(c.queue.OverflowCount())
}
