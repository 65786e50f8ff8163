package uplink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

func sampleBatch(id string, status uint8) model.AveragedData {
	return model.AveragedData{
		BatchID:             id,
		AvgBME280Temp:       21.5,
		AvgDS18B20Temp:      19.25,
		AvgHumidity:         55.5,
		AvgPressure:         1012.75,
		AvgSoilMoisture:     42.0,
		SampleStartUptimeMs: 1000,
		SampleEndUptimeMs:   61000,
		UptimeMs:            61000,
		SampleCount:         20,
		SensorStatus:        status,
	}
}

func nodeStatus() model.SystemStatus {
	return model.SystemStatus{
		UptimeMs:     123456,
		FreeMemBytes: 98_304,
		LinkRSSIdBm:  -67,
		QueueDepth:   3,
		Errors: model.ErrorCounters{
			SensorReadFailures: 2,
			NetworkFailures:    7,
			BufferOverflows:    1,
		},
	}
}

func TestBuildUploadPayloadNullableSensors(t *testing.T) {
	mask := model.SensorBME280Temp.Bit() | model.SensorSoilMoisture.Bit()
	p := buildUploadPayload("node-1", []model.AveragedData{sampleBatch("b1", mask)}, nodeStatus())

	require.Len(t, p.Readings, 1)
	r := p.Readings[0]
	assert.Equal(t, "node-1", p.DeviceID)
	assert.Equal(t, "node-1", r.DeviceID)
	assert.Equal(t, "b1", r.BatchID)

	require.NotNil(t, r.Sensors.BME280TempC)
	assert.InDelta(t, 21.5, *r.Sensors.BME280TempC, 1e-9)
	require.NotNil(t, r.Sensors.SoilMoisturePct)
	assert.InDelta(t, 42.0, *r.Sensors.SoilMoisturePct, 1e-9)

	assert.Nil(t, r.Sensors.DS18B20TempC)
	assert.Nil(t, r.Sensors.HumidityPct)
	assert.Nil(t, r.Sensors.PressureHpa)

	assert.Equal(t, "ok", r.SensorStatus.BME280)
	assert.Equal(t, "unavailable", r.SensorStatus.DS18B20)
	assert.Equal(t, "ok", r.SensorStatus.SoilMoisture)
}

func TestBuildUploadPayloadNullSerialization(t *testing.T) {
	p := buildUploadPayload("n", []model.AveragedData{sampleBatch("b1", 0)}, nodeStatus())
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	readings := decoded["readings"].([]any)
	sensors := readings[0].(map[string]any)["sensors"].(map[string]any)

	for _, key := range []string{"bme280_temp_c", "ds18b20_temp_c", "humidity_pct", "pressure_hpa", "soil_moisture_pct"} {
		v, present := sensors[key]
		assert.True(t, present, "%s key must be present", key)
		assert.Nil(t, v, "%s must serialize as null", key)
	}
}

func TestBuildUploadPayloadHealthOnLastOnly(t *testing.T) {
	batch := []model.AveragedData{
		sampleBatch("b1", 0x1F),
		sampleBatch("b2", 0x1F),
		sampleBatch("b3", 0x1F),
	}
	st := nodeStatus()
	p := buildUploadPayload("n", batch, st)
	require.Len(t, p.Readings, 3)

	for _, r := range p.Readings[:2] {
		assert.Nil(t, r.Health.FreeHeapBytes)
		assert.Nil(t, r.Health.WifiRSSIdBm)
		assert.Nil(t, r.Health.ErrorCounters)
		assert.Equal(t, int64(61000), r.Health.UptimeMs)
	}

	last := p.Readings[2]
	require.NotNil(t, last.Health.FreeHeapBytes)
	assert.Equal(t, uint64(98_304), *last.Health.FreeHeapBytes)
	require.NotNil(t, last.Health.WifiRSSIdBm)
	assert.Equal(t, -67, *last.Health.WifiRSSIdBm)
	require.NotNil(t, last.Health.ErrorCounters)
	assert.Equal(t, uint32(7), last.Health.ErrorCounters.NetworkFailures)
	assert.Equal(t, st.UptimeMs, last.Health.UptimeMs)
}

func TestParseAcknowledgedBatchIDs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"normal", `{"acknowledged_batch_ids":["a","b"]}`, []string{"a", "b"}},
		{"empty array", `{"acknowledged_batch_ids":[]}`, []string{}},
		{"field absent", `{"status":"ok"}`, nil},
		{"empty body", ``, nil},
		{"malformed json", `{"acknowledged_batch_ids":[`, nil},
		{"wrong type", `{"acknowledged_batch_ids":"a"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAcknowledgedBatchIDs([]byte(tt.body))
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseConfirmationID(t *testing.T) {
	valid := "f47ac10b-58cc-4372-a567-0e02b2c3d479" // v4

	id, err := parseConfirmationID([]byte(`{"confirmation_id":"` + valid + `"}`))
	require.NoError(t, err)
	assert.Equal(t, valid, id)

	_, err = parseConfirmationID([]byte(`{"confirmation_id":"not-a-uuid"}`))
	assert.Error(t, err)

	// UUIDv1 is rejected: the server hands out v4 only.
	_, err = parseConfirmationID([]byte(`{"confirmation_id":"f47ac10b-58cc-1372-a567-0e02b2c3d479"}`))
	assert.Error(t, err)

	_, err = parseConfirmationID([]byte(`{}`))
	assert.Error(t, err)

	_, err = parseConfirmationID([]byte(`not json`))
	assert.Error(t, err)
}
