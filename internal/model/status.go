package model

// ErrorCounters tracks recoverable failures since boot.
type ErrorCounters struct {
	SensorReadFailures uint32 `json:"sensor_read_failures"`
	NetworkFailures    uint32 `json:"network_failures"`
	BufferOverflows    uint32 `json:"buffer_overflows"`
}

// SystemStatus is a snapshot of node health, attached to the last element of
// an upload batch.
type SystemStatus struct {
	UptimeMs           int64         `json:"uptime_ms"`
	FreeMemBytes       uint64        `json:"free_mem_bytes"`
	LinkRSSIdBm        int           `json:"link_rssi_dbm"`
	QueueDepth         int           `json:"queue_depth"`
	LastTransmissionMs int64         `json:"last_transmission_ms"`
	Errors             ErrorCounters `json:"error_counters"`
}
