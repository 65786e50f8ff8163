package model

import "fmt"

// AveragedData is the arithmetic mean of N readings over a sample window,
// the unit of network transmission. Epoch bounds are zero until the batch is
// stamped with wall-clock time; uptime bounds are always valid.
type AveragedData struct {
	BatchID string `json:"batch_id"`

	AvgBME280Temp   float64 `json:"bme280_temp_c"`
	AvgDS18B20Temp  float64 `json:"ds18b20_temp_c"`
	AvgHumidity     float64 `json:"humidity_pct"`
	AvgPressure     float64 `json:"pressure_hpa"`
	AvgSoilMoisture float64 `json:"soil_moisture_pct"`

	SampleStartEpochMs int64 `json:"sample_start_epoch_ms"`
	SampleEndEpochMs   int64 `json:"sample_end_epoch_ms"`
	DeviceBootEpochMs  int64 `json:"device_boot_epoch_ms"`

	SampleStartUptimeMs int64 `json:"sample_start_uptime_ms"`
	SampleEndUptimeMs   int64 `json:"sample_end_uptime_ms"`
	UptimeMs            int64 `json:"uptime_ms"`

	SampleCount int `json:"sample_count"`
	// SensorStatus is the bitmask carried from the last reading folded in.
	SensorStatus uint8 `json:"sensor_status"`
	TimeSynced   bool  `json:"time_synced"`
}

// Avg returns the averaged value for the given channel.
func (a AveragedData) Avg(t SensorType) float64 {
	switch t {
	case SensorBME280Temp:
		return a.AvgBME280Temp
	case SensorDS18B20Temp:
		return a.AvgDS18B20Temp
	case SensorHumidity:
		return a.AvgHumidity
	case SensorPressure:
		return a.AvgPressure
	case SensorSoilMoisture:
		return a.AvgSoilMoisture
	}
	return 0
}

// Has reports whether the given channel was available on the last
// contributing reading.
func (a AveragedData) Has(t SensorType) bool {
	return a.SensorStatus&t.Bit() != 0
}

// GenerateBatchID builds the correlation key the backend uses to deduplicate
// batches. Two batches over the same window and mode collide on purpose; any
// other window produces a distinct key.
//
// Format: <deviceID>_e_<startEpoch>_<endEpoch> when wall-clock time is synced,
// <deviceID>_u_<startUptime>_<endUptime> otherwise.
func GenerateBatchID(deviceID string, startUptimeMs, endUptimeMs, startEpochMs, endEpochMs int64, timeSynced bool) string {
	if timeSynced && startEpochMs > 0 {
		return fmt.Sprintf("%s_e_%d_%d", deviceID, startEpochMs, endEpochMs)
	}
	return fmt.Sprintf("%s_u_%d_%d", deviceID, startUptimeMs, endUptimeMs)
}
