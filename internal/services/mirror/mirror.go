// Package mirror copies each raw reading onto the greenhouse LAN so local
// dashboards work with or without the cloud link: a JSON publish on the MQTT
// bus and a point in the local InfluxDB bucket.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/mqttbus"
)

type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	Measurement  string
}

type Service struct {
	deviceID    string
	publisher   mqttbus.IPublisher
	writeAPI    api.WriteAPIBlocking
	measurement string
}

// NewService builds a mirror over an already-connected publisher.
func NewService(deviceID string, publisher mqttbus.IPublisher, cfg InfluxConfig) (*Service, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("mirror: influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "greenhouse_readings"
	}
	return &Service{
		deviceID:    deviceID,
		publisher:   publisher,
		writeAPI:    client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		measurement: sanitizeMeasurement(measurement),
	}, nil
}

type readingMessage struct {
	DeviceID    string   `json:"device_id"`
	UptimeMs    int64    `json:"uptime_ms"`
	EpochMs     int64    `json:"epoch_ms,omitempty"`
	BME280Temp  *float64 `json:"bme280_temp_c"`
	DS18B20Temp *float64 `json:"ds18b20_temp_c"`
	Humidity    *float64 `json:"humidity_pct"`
	Pressure    *float64 `json:"pressure_hpa"`
	SoilMoist   *float64 `json:"soil_moisture_pct"`
}

// MirrorReading forwards one reading. Failures are logged and swallowed:
// the mirror must never hold up sampling or delivery.
func (s *Service) MirrorReading(ctx context.Context, r model.SensorReadings, epochMs int64) {
	msg := readingMessage{
		DeviceID:    s.deviceID,
		UptimeMs:    r.MonotonicMs,
		EpochMs:     epochMs,
		BME280Temp:  valueOrNil(r, model.SensorBME280Temp),
		DS18B20Temp: valueOrNil(r, model.SensorDS18B20Temp),
		Humidity:    valueOrNil(r, model.SensorHumidity),
		Pressure:    valueOrNil(r, model.SensorPressure),
		SoilMoist:   valueOrNil(r, model.SensorSoilMoisture),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("mirror: marshal reading: %v", err)
		return
	}
	if err := s.publisher.Publish(payload); err != nil {
		log.Printf("mirror: mqtt publish: %v", err)
	}

	t := time.Now()
	if epochMs > 0 {
		t = time.UnixMilli(epochMs)
	}
	tags := map[string]string{"device_id": s.deviceID}
	fields := map[string]interface{}{}
	for ch := model.SensorType(0); ch < model.NumSensors; ch++ {
		if r.Has(ch) {
			fields[fieldName(ch)] = r.Value(ch)
		}
	}
	if len(fields) == 0 {
		return
	}
	point := influxdb2.NewPoint(s.measurement, tags, fields, t)
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		log.Printf("mirror: influx write: %v", err)
	}
}

func valueOrNil(r model.SensorReadings, t model.SensorType) *float64 {
	if !r.Has(t) {
		return nil
	}
	v := r.Value(t)
	return &v
}

func fieldName(t model.SensorType) string {
	switch t {
	case model.SensorBME280Temp:
		return "bme280_temp_c"
	case model.SensorDS18B20Temp:
		return "ds18b20_temp_c"
	case model.SensorHumidity:
		return "humidity_pct"
	case model.SensorPressure:
		return "pressure_hpa"
	case model.SensorSoilMoisture:
		return "soil_moisture_pct"
	}
	return "unknown"
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
