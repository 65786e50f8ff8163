package model

// DisplayPoint is one (value, timestamp) pair of the rolling graph history.
type DisplayPoint struct {
	Value float64 `json:"value"`
	// TimestampMs is monotonic milliseconds since boot.
	TimestampMs int64 `json:"timestamp_ms"`
}
