package datamanager

import (
	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

// MaxQueueSize is the transmission ring buffer capacity.
const MaxQueueSize = 50

// overflowThreshold is the high-water mark: once the queue holds this many
// entries, every push evicts the oldest entry first, so the queue stabilizes
// at 45 under sustained overflow.
const overflowThreshold = MaxQueueSize * 9 / 10

// warnThreshold marks the >80% warning level.
const warnThreshold = MaxQueueSize * 8 / 10

// TransmissionQueue is a bounded FIFO ring of averaged batches awaiting
// delivery. Oldest entries are sacrificed under overflow so memory stays
// bounded through arbitrarily long outages.
type TransmissionQueue struct {
	buf       [MaxQueueSize]model.AveragedData
	head      int // index where the next item is written
	tail      int // index of the oldest item
	count     int
	overflows uint32
}

func NewTransmissionQueue() *TransmissionQueue {
	return &TransmissionQueue{}
}

// Push enqueues a batch, evicting the oldest entry first when the queue is at
// or above the 90% high-water mark.
func (q *TransmissionQueue) Push(item model.AveragedData) {
	if q.count >= overflowThreshold && q.count > 0 {
		q.tail = (q.tail + 1) % MaxQueueSize
		q.count--
		q.overflows++
	}

	q.buf[q.head] = item
	q.head = (q.head + 1) % MaxQueueSize
	if q.count < MaxQueueSize {
		q.count++
	}
}

func (q *TransmissionQueue) Len() int { return q.count }

// OverflowCount reports how many entries have been lost to eviction since
// boot (or since the last state restore).
func (q *TransmissionQueue) OverflowCount() uint32 { return q.overflows }

// IsNearFull reports whether the queue is strictly above the 80% warning
// threshold; exactly 40 of 50 is not near-full.
func (q *TransmissionQueue) IsNearFull() bool {
	return q.count > warnThreshold
}

// Snapshot returns the queued batches oldest first. The queue is not mutated.
func (q *TransmissionQueue) Snapshot() []model.AveragedData {
	if q.count == 0 {
		return nil
	}
	out := make([]model.AveragedData, 0, q.count)
	idx := q.tail
	for i := 0; i < q.count; i++ {
		out = append(out, q.buf[idx])
		idx = (idx + 1) % MaxQueueSize
	}
	return out
}

// EvictAcknowledged removes every entry whose batch id appears in ids,
// preserving the FIFO order of survivors. Ids not present in the queue are
// ignored, so applying the same set twice is a no-op the second time.
func (q *TransmissionQueue) EvictAcknowledged(ids []string) {
	if len(ids) == 0 || q.count == 0 {
		return
	}

	acked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		acked[id] = struct{}{}
	}

	// Rebuild in place, keeping survivors in order.
	var kept [MaxQueueSize]model.AveragedData
	keptCount := 0

	idx := q.tail
	for i := 0; i < q.count; i++ {
		if _, ok := acked[q.buf[idx].BatchID]; !ok {
			kept[keptCount] = q.buf[idx]
			keptCount++
		}
		idx = (idx + 1) % MaxQueueSize
	}

	q.buf = kept
	q.tail = 0
	q.count = keptCount
	q.head = keptCount % MaxQueueSize
}

// restore replaces the queue contents with entries (oldest first), used when
// reloading persisted state. Truncates to capacity.
func (q *TransmissionQueue) restore(entries []model.AveragedData, overflows uint32) {
	if len(entries) > MaxQueueSize {
		entries = entries[:MaxQueueSize]
	}
	var buf [MaxQueueSize]model.AveragedData
	copy(buf[:], entries)
	q.buf = buf
	q.tail = 0
	q.count = len(entries)
	q.head = len(entries) % MaxQueueSize
	q.overflows = overflows
}
