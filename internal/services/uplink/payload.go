package uplink

import (
	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

// Wire format of the telemetry upload. Field names and the
// null-when-unavailable convention are what the backend already ingests;
// do not rename.

type uploadPayload struct {
	DeviceID string           `json:"device_id"`
	Readings []readingPayload `json:"readings"`
}

type readingPayload struct {
	BatchID  string `json:"batch_id"`
	DeviceID string `json:"device_id"`

	SampleStartEpochMs int64 `json:"sample_start_epoch_ms"`
	SampleEndEpochMs   int64 `json:"sample_end_epoch_ms"`
	DeviceBootEpochMs  int64 `json:"device_boot_epoch_ms"`

	SampleStartUptimeMs int64 `json:"sample_start_uptime_ms"`
	SampleEndUptimeMs   int64 `json:"sample_end_uptime_ms"`
	UptimeMs            int64 `json:"uptime_ms"`

	SampleCount int  `json:"sample_count"`
	TimeSynced  bool `json:"time_synced"`

	Sensors      sensorValues        `json:"sensors"`
	SensorStatus sensorStatusPayload `json:"sensor_status"`
	Health       healthPayload       `json:"health"`
}

// sensorValues carries per-channel averages; a nil field serializes as null,
// meaning the channel was unavailable on the last contributing reading.
type sensorValues struct {
	BME280TempC     *float64 `json:"bme280_temp_c"`
	DS18B20TempC    *float64 `json:"ds18b20_temp_c"`
	HumidityPct     *float64 `json:"humidity_pct"`
	PressureHpa     *float64 `json:"pressure_hpa"`
	SoilMoisturePct *float64 `json:"soil_moisture_pct"`
}

// sensorStatusPayload is keyed by physical sensor: the BME280 covers the
// temperature, humidity and pressure channels.
type sensorStatusPayload struct {
	BME280       string `json:"bme280"`
	DS18B20      string `json:"ds18b20"`
	SoilMoisture string `json:"soil_moisture"`
}

// healthPayload is full on the last reading of a batch and minimal
// (uptime only) on the others, to keep payloads small.
type healthPayload struct {
	UptimeMs      int64                 `json:"uptime_ms"`
	FreeHeapBytes *uint64               `json:"free_heap_bytes,omitempty"`
	WifiRSSIdBm   *int                  `json:"wifi_rssi_dbm,omitempty"`
	ErrorCounters *errorCountersPayload `json:"error_counters,omitempty"`
}

type errorCountersPayload struct {
	SensorReadFailures uint32 `json:"sensor_read_failures"`
	NetworkFailures    uint32 `json:"network_failures"`
	BufferOverflows    uint32 `json:"buffer_overflows"`
}

// ackResponse is the server acknowledgment. An absent field means "nothing
// acknowledged yet", never an error.
type ackResponse struct {
	AcknowledgedBatchIDs []string `json:"acknowledged_batch_ids"`
}

func statusWord(available bool) string {
	if available {
		return "ok"
	}
	return "unavailable"
}

func avgOrNull(a model.AveragedData, t model.SensorType) *float64 {
	if !a.Has(t) {
		return nil
	}
	v := a.Avg(t)
	return &v
}

func buildUploadPayload(deviceID string, batch []model.AveragedData, status model.SystemStatus) uploadPayload {
	p := uploadPayload{
		DeviceID: deviceID,
		Readings: make([]readingPayload, 0, len(batch)),
	}

	for i, a := range batch {
		r := readingPayload{
			BatchID:             a.BatchID,
			DeviceID:            deviceID,
			SampleStartEpochMs:  a.SampleStartEpochMs,
			SampleEndEpochMs:    a.SampleEndEpochMs,
			DeviceBootEpochMs:   a.DeviceBootEpochMs,
			SampleStartUptimeMs: a.SampleStartUptimeMs,
			SampleEndUptimeMs:   a.SampleEndUptimeMs,
			UptimeMs:            a.UptimeMs,
			SampleCount:         a.SampleCount,
			TimeSynced:          a.TimeSynced,
			Sensors: sensorValues{
				BME280TempC:     avgOrNull(a, model.SensorBME280Temp),
				DS18B20TempC:    avgOrNull(a, model.SensorDS18B20Temp),
				HumidityPct:     avgOrNull(a, model.SensorHumidity),
				PressureHpa:     avgOrNull(a, model.SensorPressure),
				SoilMoisturePct: avgOrNull(a, model.SensorSoilMoisture),
			},
			SensorStatus: sensorStatusPayload{
				BME280:       statusWord(a.Has(model.SensorBME280Temp)),
				DS18B20:      statusWord(a.Has(model.SensorDS18B20Temp)),
				SoilMoisture: statusWord(a.Has(model.SensorSoilMoisture)),
			},
			Health: healthPayload{UptimeMs: a.UptimeMs},
		}

		if i == len(batch)-1 {
			free := status.FreeMemBytes
			rssi := status.LinkRSSIdBm
			r.Health = healthPayload{
				UptimeMs:      status.UptimeMs,
				FreeHeapBytes: &free,
				WifiRSSIdBm:   &rssi,
				ErrorCounters: &errorCountersPayload{
					SensorReadFailures: status.Errors.SensorReadFailures,
					NetworkFailures:    status.Errors.NetworkFailures,
					BufferOverflows:    status.Errors.BufferOverflows,
				},
			}
		}

		p.Readings = append(p.Readings, r)
	}

	return p
}
