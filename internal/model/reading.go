package model

// SensorType indexes one of the node's measurement channels.
type SensorType uint8

const (
	SensorBME280Temp SensorType = iota
	SensorDS18B20Temp
	SensorHumidity
	SensorPressure
	SensorSoilMoisture
)

// NumSensors is the number of measurement channels.
const NumSensors = 5

// Bit returns the availability-bitmask bit for this channel.
func (t SensorType) Bit() uint8 {
	return 1 << uint8(t)
}

func (t SensorType) String() string {
	switch t {
	case SensorBME280Temp:
		return "bme280_temp"
	case SensorDS18B20Temp:
		return "ds18b20_temp"
	case SensorHumidity:
		return "humidity"
	case SensorPressure:
		return "pressure"
	case SensorSoilMoisture:
		return "soil_moisture"
	}
	return "unknown"
}

// SensorReadings holds one reading per channel at a single point in time,
// produced by the sensor subsystem every read interval. Immutable once built.
type SensorReadings struct {
	BME280Temp      float64 `json:"bme280_temp_c"`
	DS18B20Temp     float64 `json:"ds18b20_temp_c"`
	Humidity        float64 `json:"humidity_pct"`
	Pressure        float64 `json:"pressure_hpa"`
	SoilMoisture    float64 `json:"soil_moisture_pct"`
	SoilMoistureRaw uint16  `json:"soil_moisture_raw"`
	// SensorStatus is a bitmask, one bit per SensorType (1 = available).
	SensorStatus uint8 `json:"sensor_status"`
	// MonotonicMs is milliseconds since boot.
	MonotonicMs int64 `json:"monotonic_ms"`
}

// Has reports whether the given channel was available for this reading.
func (r SensorReadings) Has(t SensorType) bool {
	return r.SensorStatus&t.Bit() != 0
}

// Value returns the reading for the given channel.
func (r SensorReadings) Value(t SensorType) float64 {
	switch t {
	case SensorBME280Temp:
		return r.BME280Temp
	case SensorDS18B20Temp:
		return r.DS18B20Temp
	case SensorHumidity:
		return r.Humidity
	case SensorPressure:
		return r.Pressure
	case SensorSoilMoisture:
		return r.SoilMoisture
	}
	return 0
}
