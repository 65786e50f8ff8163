package datamanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

func displayReading(ts int64, base float64) model.SensorReadings {
	return model.SensorReadings{
		BME280Temp:   base,
		DS18B20Temp:  base + 1,
		Humidity:     base + 2,
		Pressure:     base + 3,
		SoilMoisture: base + 4,
		SensorStatus: 0x1F,
		MonotonicMs:  ts,
	}
}

func TestHistoryCadenceGate(t *testing.T) {
	h := NewDisplayHistory()

	h.AddSample(displayReading(5000, 1)) // first sample always stored
	h.AddSample(displayReading(30_000, 2))
	h.AddSample(displayReading(64_999, 3)) // 59 999 ms later: still gated
	assert.Equal(t, 1, h.Count(model.SensorBME280Temp))

	h.AddSample(displayReading(65_000, 4)) // exactly 60 s later
	assert.Equal(t, 2, h.Count(model.SensorBME280Temp))

	// All five channels move together.
	for ch := model.SensorType(0); ch < model.NumSensors; ch++ {
		assert.Equal(t, 2, h.Count(ch), "channel %s", ch)
	}
}

func TestHistoryChannelValues(t *testing.T) {
	h := NewDisplayHistory()
	h.AddSample(displayReading(0, 10))

	assert.InDelta(t, 10.0, h.Series(model.SensorBME280Temp, 0)[0].Value, 1e-9)
	assert.InDelta(t, 11.0, h.Series(model.SensorDS18B20Temp, 0)[0].Value, 1e-9)
	assert.InDelta(t, 12.0, h.Series(model.SensorHumidity, 0)[0].Value, 1e-9)
	assert.InDelta(t, 13.0, h.Series(model.SensorPressure, 0)[0].Value, 1e-9)
	assert.InDelta(t, 14.0, h.Series(model.SensorSoilMoisture, 0)[0].Value, 1e-9)
}

func fillHistory(h *DisplayHistory, n int) {
	for i := 0; i < n; i++ {
		h.AddSample(displayReading(int64(i)*displayIntervalMs+1, float64(i)))
	}
}

func TestHistoryRingOverwrite(t *testing.T) {
	h := NewDisplayHistory()
	fillHistory(h, MaxDisplayPoints+10)

	assert.Equal(t, MaxDisplayPoints, h.Count(model.SensorSoilMoisture))

	pts := h.Series(model.SensorBME280Temp, 0)
	require.Len(t, pts, MaxDisplayPoints)
	// Ten oldest points were overwritten: series now starts at sample 10.
	assert.InDelta(t, 10.0, pts[0].Value, 1e-9)
	assert.InDelta(t, float64(MaxDisplayPoints+9), pts[len(pts)-1].Value, 1e-9)

	// Still chronological after wrap.
	for i := 1; i < len(pts); i++ {
		assert.Greater(t, pts[i].TimestampMs, pts[i-1].TimestampMs)
	}
}

func TestHistoryDownsample(t *testing.T) {
	h := NewDisplayHistory()
	fillHistory(h, MaxDisplayPoints)

	full := h.Series(model.SensorHumidity, 0)
	require.Len(t, full, MaxDisplayPoints)

	pts := h.Series(model.SensorHumidity, 120)
	require.Len(t, pts, 120)
	assert.Equal(t, full[0], pts[0], "first point preserved")
	assert.Equal(t, full[len(full)-1], pts[len(pts)-1], "last point preserved")

	// Interior points follow the floor(i*(n-1)/(m-1)) mapping.
	for i := 1; i < 119; i++ {
		want := full[i*(MaxDisplayPoints-1)/119]
		assert.Equal(t, want, pts[i], "interior point %d", i)
	}
}

func TestHistoryNoDownsampleWhenFewPoints(t *testing.T) {
	h := NewDisplayHistory()
	fillHistory(h, 30)

	assert.Len(t, h.Series(model.SensorPressure, 120), 30)
	assert.Len(t, h.Series(model.SensorPressure, 0), 30)
	assert.Len(t, h.Series(model.SensorPressure, 30), 30)
}

func TestHistoryEmpty(t *testing.T) {
	h := NewDisplayHistory()
	assert.Nil(t, h.Series(model.SensorBME280Temp, 10))
	assert.Zero(t, h.Count(model.SensorSoilMoisture))
}
