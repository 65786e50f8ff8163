package mirror

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

type fakePublisher struct {
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(payload []byte) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}
func (p *fakePublisher) Close() {}

type fakeWriteAPI struct {
	points []*write.Point
	err    error
}

func (w *fakeWriteAPI) WriteRecord(_ context.Context, _ ...string) error { return w.err }
func (w *fakeWriteAPI) WritePoint(_ context.Context, point ...*write.Point) error {
	w.points = append(w.points, point...)
	return w.err
}
func (w *fakeWriteAPI) EnableBatching()             {}
func (w *fakeWriteAPI) Flush(_ context.Context) error { return w.err }

func newTestService(pub *fakePublisher, writeAPI *fakeWriteAPI) *Service {
	return &Service{
		deviceID:    "node-01",
		publisher:   pub,
		writeAPI:    writeAPI,
		measurement: "greenhouse_readings",
	}
}

func allSensorsReading() model.SensorReadings {
	return model.SensorReadings{
		BME280Temp:   22.5,
		DS18B20Temp:  21.0,
		Humidity:     55.0,
		Pressure:     1013.2,
		SoilMoisture: 40.0,
		SensorStatus: 0x1F,
		MonotonicMs:  120_000,
	}
}

func TestMirrorPublishesReadingJSON(t *testing.T) {
	pub := &fakePublisher{}
	api := &fakeWriteAPI{}
	s := newTestService(pub, api)

	s.MirrorReading(context.Background(), allSensorsReading(), 1_700_000_000_000)

	require.Len(t, pub.payloads, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "node-01", got["device_id"])
	assert.Equal(t, float64(120_000), got["uptime_ms"])
	assert.Equal(t, 22.5, got["bme280_temp_c"])
	assert.Equal(t, 40.0, got["soil_moisture_pct"])
}

func TestMirrorNullsUnavailableChannels(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestService(pub, &fakeWriteAPI{})

	r := allSensorsReading()
	r.SensorStatus = model.SensorBME280Temp.Bit() | model.SensorHumidity.Bit()
	s.MirrorReading(context.Background(), r, 0)

	require.Len(t, pub.payloads, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Nil(t, got["soil_moisture_pct"])
	assert.Nil(t, got["ds18b20_temp_c"])
	assert.Equal(t, 55.0, got["humidity_pct"])
}

func TestMirrorWritesInfluxPoint(t *testing.T) {
	api := &fakeWriteAPI{}
	s := newTestService(&fakePublisher{}, api)

	s.MirrorReading(context.Background(), allSensorsReading(), 1_700_000_000_000)

	require.Len(t, api.points, 1)
	p := api.points[0]
	assert.Equal(t, "greenhouse_readings", p.Name())
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Len(t, fields, 5)
	assert.Equal(t, 1013.2, fields["pressure_hpa"])
}

func TestMirrorSkipsInfluxWhenNoChannelAvailable(t *testing.T) {
	api := &fakeWriteAPI{}
	s := newTestService(&fakePublisher{}, api)

	r := allSensorsReading()
	r.SensorStatus = 0
	s.MirrorReading(context.Background(), r, 0)

	assert.Empty(t, api.points)
}

func TestNewServiceRejectsIncompleteConfig(t *testing.T) {
	_, err := NewService("node-01", &fakePublisher{}, InfluxConfig{InfluxURL: "http://localhost:8086"})
	assert.Error(t, err)
}

func TestSanitizeMeasurement(t *testing.T) {
	assert.Equal(t, "green_house_1", sanitizeMeasurement("green house/1"))
}
