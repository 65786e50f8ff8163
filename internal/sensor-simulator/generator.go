// Package sensor_simulator generates plausible greenhouse readings when the
// node runs without real hardware attached. Each channel does a bounded
// random walk; physical sensors drop out now and then so the availability
// paths get exercised end to end.
package sensor_simulator

import (
	"math/rand"
	"sync"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

// ====== Tunables ======
const (
	// dropoutProb: per-sample chance that a physical sensor reads as
	// unavailable. High enough to hit the null paths within minutes.
	dropoutProb = 0.02

	baseRSSI = -60
)

type channelWalk struct {
	value float64
	step  float64 // max delta per sample
	min   float64
	max   float64
}

func (c *channelWalk) next(rng *rand.Rand) float64 {
	c.value += (rng.Float64()*2 - 1) * c.step
	if c.value < c.min {
		c.value = c.min
	}
	if c.value > c.max {
		c.value = c.max
	}
	return c.value
}

// DataGenerator keeps per-channel walk state and hands out one reading per
// call. Safe for concurrent use.
type DataGenerator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	channels [model.NumSensors]channelWalk
	rssi     int
}

func NewDataGenerator(seed int64) *DataGenerator {
	g := &DataGenerator{
		rng:  rand.New(rand.NewSource(seed)),
		rssi: baseRSSI,
	}
	g.channels[model.SensorBME280Temp] = channelWalk{value: 23.0, step: 0.3, min: 5, max: 45}
	g.channels[model.SensorDS18B20Temp] = channelWalk{value: 21.5, step: 0.2, min: 0, max: 40}
	g.channels[model.SensorHumidity] = channelWalk{value: 55.0, step: 1.5, min: 10, max: 100}
	g.channels[model.SensorPressure] = channelWalk{value: 1013.0, step: 0.4, min: 950, max: 1050}
	g.channels[model.SensorSoilMoisture] = channelWalk{value: 38.0, step: 0.8, min: 0, max: 100}
	return g
}

// Next produces the reading for monotonicMs. The availability mask reflects
// simulated dropouts: losing the BME280 loses its temperature, humidity and
// pressure channels together, matching how the real bus failure looks.
func (g *DataGenerator) Next(monotonicMs int64) model.SensorReadings {
	g.mu.Lock()
	defer g.mu.Unlock()

	bmeOK := g.rng.Float64() >= dropoutProb
	dsOK := g.rng.Float64() >= dropoutProb
	soilOK := g.rng.Float64() >= dropoutProb

	r := model.SensorReadings{MonotonicMs: monotonicMs}
	if bmeOK {
		r.BME280Temp = g.channels[model.SensorBME280Temp].next(g.rng)
		r.Humidity = g.channels[model.SensorHumidity].next(g.rng)
		r.Pressure = g.channels[model.SensorPressure].next(g.rng)
		r.SensorStatus |= model.SensorBME280Temp.Bit() |
			model.SensorHumidity.Bit() | model.SensorPressure.Bit()
	}
	if dsOK {
		r.DS18B20Temp = g.channels[model.SensorDS18B20Temp].next(g.rng)
		r.SensorStatus |= model.SensorDS18B20Temp.Bit()
	}
	if soilOK {
		r.SoilMoisture = g.channels[model.SensorSoilMoisture].next(g.rng)
		r.SoilMoistureRaw = uint16(r.SoilMoisture * 40.95)
		r.SensorStatus |= model.SensorSoilMoisture.Bit()
	}
	return r
}

// LinkRSSI walks around the base signal level, clamped to a realistic band.
func (g *DataGenerator) LinkRSSI() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rssi += g.rng.Intn(5) - 2
	if g.rssi < -90 {
		g.rssi = -90
	}
	if g.rssi > -40 {
		g.rssi = -40
	}
	return g.rssi
}
