package datamanager

import (
	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

// MaxPublishSamples caps the averaging buffer regardless of the configured
// publish interval.
const MaxPublishSamples = 120

// Accumulator collects raw readings into a fixed-size buffer and folds them
// into one averaged batch when the configured threshold is reached. No
// allocation happens after construction.
type Accumulator struct {
	buf       [MaxPublishSamples]model.SensorReadings
	count     int
	threshold int
}

func NewAccumulator(threshold int) *Accumulator {
	a := &Accumulator{}
	a.SetThreshold(threshold)
	return a
}

// SetThreshold clamps the publish threshold to [1, MaxPublishSamples].
func (a *Accumulator) SetThreshold(n int) {
	switch {
	case n < 1:
		a.threshold = 1
	case n > MaxPublishSamples:
		a.threshold = MaxPublishSamples
	default:
		a.threshold = n
	}
}

func (a *Accumulator) Threshold() int { return a.threshold }

func (a *Accumulator) Count() int { return a.count }

// AddReading appends a reading. Readings arriving after the threshold is
// reached are silently dropped; callers must aggregate and Clear promptly
// once ShouldAggregate reports true.
func (a *Accumulator) AddReading(r model.SensorReadings) {
	if a.count < a.threshold {
		a.buf[a.count] = r
		a.count++
	}
}

func (a *Accumulator) ShouldAggregate() bool {
	return a.count >= a.threshold
}

// ComputeAggregate averages every channel over all stored readings. The mean
// deliberately includes values from readings where the channel was flagged
// unavailable, and the batch carries the availability bitmask of the last
// reading only; the backend depends on both behaviors.
//
// Batch id and epoch bounds are stamped later by the coordinator, which owns
// device identity and the wall clock.
func (a *Accumulator) ComputeAggregate() model.AveragedData {
	var avg model.AveragedData
	if a.count == 0 {
		return avg
	}

	var sumBME, sumDS, sumHum, sumPress, sumSoil float64
	for i := 0; i < a.count; i++ {
		sumBME += a.buf[i].BME280Temp
		sumDS += a.buf[i].DS18B20Temp
		sumHum += a.buf[i].Humidity
		sumPress += a.buf[i].Pressure
		sumSoil += a.buf[i].SoilMoisture
	}

	n := float64(a.count)
	avg.AvgBME280Temp = sumBME / n
	avg.AvgDS18B20Temp = sumDS / n
	avg.AvgHumidity = sumHum / n
	avg.AvgPressure = sumPress / n
	avg.AvgSoilMoisture = sumSoil / n

	avg.SampleStartUptimeMs = a.buf[0].MonotonicMs
	avg.SampleEndUptimeMs = a.buf[a.count-1].MonotonicMs
	avg.UptimeMs = a.buf[a.count-1].MonotonicMs

	avg.SampleCount = a.count
	avg.SensorStatus = a.buf[a.count-1].SensorStatus

	return avg
}

// Clear resets the buffer. Count is authoritative, no need to zero memory.
func (a *Accumulator) Clear() {
	a.count = 0
}
