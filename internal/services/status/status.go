// Package status tracks node health: cumulative error counters, queue depth,
// link quality and last-transmission age. The same numbers feed three
// consumers: the per-batch health payload, the /healthz endpoint and the
// Prometheus registry.
package status

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/timekeeper"
)

type Manager struct {
	clock timekeeper.Clock

	mu         sync.Mutex
	errors     model.ErrorCounters
	queueDepth int
	linkRSSI   int
	lastTxMs   int64

	sensorFailures  prometheus.Counter
	networkFailures prometheus.Counter
	bufferOverflows prometheus.Gauge
	queueDepthGauge prometheus.Gauge
	batchesSent     prometheus.Counter
	batchesAcked    prometheus.Counter
}

// NewManager registers the node metrics on reg. Pass a fresh
// prometheus.NewRegistry in tests to avoid default-registry collisions.
func NewManager(clock timekeeper.Clock, reg prometheus.Registerer) *Manager {
	f := promauto.With(reg)
	return &Manager{
		clock: clock,
		sensorFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "node_sensor_read_failures_total",
			Help: "Sensor sampling attempts that returned no valid reading.",
		}),
		networkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "node_network_failures_total",
			Help: "Upload attempts that failed at transport or server level.",
		}),
		bufferOverflows: f.NewGauge(prometheus.GaugeOpts{
			Name: "node_buffer_overflows_total",
			Help: "Batches evicted from the transmission queue to make room.",
		}),
		queueDepthGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "node_transmission_queue_depth",
			Help: "Batches currently waiting for acknowledgement.",
		}),
		batchesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "node_batches_sent_total",
			Help: "Upload requests accepted by the server.",
		}),
		batchesAcked: f.NewCounter(prometheus.CounterOpts{
			Name: "node_batches_acked_total",
			Help: "Batches acknowledged by the server.",
		}),
	}
}

func (m *Manager) RecordSensorReadFailure() {
	m.mu.Lock()
	m.errors.SensorReadFailures++
	m.mu.Unlock()
	m.sensorFailures.Inc()
}

func (m *Manager) RecordNetworkFailure() {
	m.mu.Lock()
	m.errors.NetworkFailures++
	m.mu.Unlock()
	m.networkFailures.Inc()
}

// SetBufferOverflows mirrors the queue's own eviction counter; the queue is
// the source of truth so restarts restore the same value.
func (m *Manager) SetBufferOverflows(n uint32) {
	m.mu.Lock()
	m.errors.BufferOverflows = n
	m.mu.Unlock()
	m.bufferOverflows.Set(float64(n))
}

func (m *Manager) SetQueueDepth(n int) {
	m.mu.Lock()
	m.queueDepth = n
	m.mu.Unlock()
	m.queueDepthGauge.Set(float64(n))
}

func (m *Manager) SetLinkRSSI(dbm int) {
	m.mu.Lock()
	m.linkRSSI = dbm
	m.mu.Unlock()
}

// MarkTransmission records a server-accepted upload, acked counting the
// batch ids the server acknowledged in the response.
func (m *Manager) MarkTransmission(acked int) {
	m.mu.Lock()
	m.lastTxMs = m.clock.MonotonicMs()
	m.mu.Unlock()
	m.batchesSent.Inc()
	m.batchesAcked.Add(float64(acked))
}

func (m *Manager) Snapshot() model.SystemStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return model.SystemStatus{
		UptimeMs:           m.clock.MonotonicMs(),
		FreeMemBytes:       ms.HeapSys - ms.HeapInuse,
		LinkRSSIdBm:        m.linkRSSI,
		QueueDepth:         m.queueDepth,
		LastTransmissionMs: m.lastTxMs,
		Errors:             m.errors,
	}
}
