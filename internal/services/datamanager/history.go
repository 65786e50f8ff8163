package datamanager

import (
	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

// MaxDisplayPoints is 4 hours of history at the 1-minute display cadence.
const MaxDisplayPoints = 240

// displayIntervalMs decouples the display sampling cadence from the
// configurable sensor read cadence.
const displayIntervalMs = 60_000

// DisplayHistory keeps one bounded ring of points per channel for graph
// rendering. All five rings are sampled at the same instants: a reading
// either lands in every ring or in none.
type DisplayHistory struct {
	series [model.NumSensors][MaxDisplayPoints]model.DisplayPoint
	head   [model.NumSensors]int
	count  [model.NumSensors]int
	// lastStoredMs is shared across channels; zero means nothing stored yet.
	lastStoredMs int64
}

func NewDisplayHistory() *DisplayHistory {
	return &DisplayHistory{}
}

// AddSample stores one point per channel if at least a minute has passed
// since the last stored sample, overwriting the chronologically oldest slot
// once a ring is full. Otherwise it is a no-op.
func (h *DisplayHistory) AddSample(r model.SensorReadings) {
	if h.lastStoredMs != 0 && r.MonotonicMs-h.lastStoredMs < displayIntervalMs {
		return
	}
	h.lastStoredMs = r.MonotonicMs

	for ch := model.SensorType(0); ch < model.NumSensors; ch++ {
		h.series[ch][h.head[ch]] = model.DisplayPoint{
			Value:       r.Value(ch),
			TimestampMs: r.MonotonicMs,
		}
		h.head[ch] = (h.head[ch] + 1) % MaxDisplayPoints
		if h.count[ch] < MaxDisplayPoints {
			h.count[ch]++
		}
	}
}

// Count returns the number of stored points for a channel.
func (h *DisplayHistory) Count(ch model.SensorType) int {
	if int(ch) >= model.NumSensors {
		return 0
	}
	return h.count[ch]
}

// Series returns a channel's points in chronological order, downsampled to at
// most maxPoints. maxPoints == 0 means no downsampling. When decimating, the
// first and last stored points are always preserved and interior points are
// picked by nearest-neighbor index mapping; interior extremes may be skipped.
func (h *DisplayHistory) Series(ch model.SensorType, maxPoints int) []model.DisplayPoint {
	if int(ch) >= model.NumSensors || h.count[ch] == 0 {
		return nil
	}

	available := h.count[ch]
	linear := h.linearize(ch)

	if maxPoints <= 0 || available <= maxPoints {
		return linear
	}

	out := make([]model.DisplayPoint, maxPoints)
	out[0] = linear[0]
	out[maxPoints-1] = linear[available-1]
	for i := 1; i < maxPoints-1; i++ {
		srcIdx := i * (available - 1) / (maxPoints - 1)
		out[i] = linear[srcIdx]
	}
	return out
}

// linearize copies a ring into chronological order.
func (h *DisplayHistory) linearize(ch model.SensorType) []model.DisplayPoint {
	n := h.count[ch]
	out := make([]model.DisplayPoint, n)
	if n < MaxDisplayPoints {
		// Ring has not wrapped: data runs from slot 0 to head-1.
		copy(out, h.series[ch][:n])
		return out
	}
	head := h.head[ch]
	copy(out, h.series[ch][head:])
	copy(out[MaxDisplayPoints-head:], h.series[ch][:head])
	return out
}

// restore replaces one channel's ring with points in chronological order,
// used when reloading persisted state. Truncates to capacity, keeping the
// newest points.
func (h *DisplayHistory) restore(ch model.SensorType, points []model.DisplayPoint, lastStoredMs int64) {
	if int(ch) >= model.NumSensors {
		return
	}
	if len(points) > MaxDisplayPoints {
		points = points[len(points)-MaxDisplayPoints:]
	}
	var ring [MaxDisplayPoints]model.DisplayPoint
	copy(ring[:], points)
	h.series[ch] = ring
	h.count[ch] = len(points)
	h.head[ch] = len(points) % MaxDisplayPoints
	h.lastStoredMs = lastStoredMs
}
