package status

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	nowMs int64
}

func (c *fakeClock) MonotonicMs() int64   { return c.nowMs }
func (c *fakeClock) EpochMsOrZero() int64 { return 0 }
func (c *fakeClock) BootEpochMs() int64   { return 0 }
func (c *fakeClock) Synced() bool         { return false }

func TestSnapshotCounters(t *testing.T) {
	clock := &fakeClock{nowMs: 42_000}
	m := NewManager(clock, prometheus.NewRegistry())

	m.RecordSensorReadFailure()
	m.RecordSensorReadFailure()
	m.RecordNetworkFailure()
	m.SetBufferOverflows(3)
	m.SetQueueDepth(7)
	m.SetLinkRSSI(-61)
	m.MarkTransmission(2)

	snap := m.Snapshot()
	assert.Equal(t, int64(42_000), snap.UptimeMs)
	assert.Equal(t, uint32(2), snap.Errors.SensorReadFailures)
	assert.Equal(t, uint32(1), snap.Errors.NetworkFailures)
	assert.Equal(t, uint32(3), snap.Errors.BufferOverflows)
	assert.Equal(t, 7, snap.QueueDepth)
	assert.Equal(t, -61, snap.LinkRSSIdBm)
	assert.Equal(t, int64(42_000), snap.LastTransmissionMs)
	assert.NotZero(t, snap.FreeMemBytes)
}

func TestPrometheusMetricsExported(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(&fakeClock{}, reg)

	m.RecordNetworkFailure()
	m.SetQueueDepth(12)
	m.MarkTransmission(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.networkFailures))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.queueDepthGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchesSent))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.batchesAcked))
}

func TestHealthzOK(t *testing.T) {
	clock := &fakeClock{nowMs: 100_000}
	m := NewManager(clock, prometheus.NewRegistry())
	m.MarkTransmission(1)
	clock.nowMs = 200_000

	rec := httptest.NewRecorder()
	NewHealthHandler(m).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, 200, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, float64(200_000), got["uptime_ms"])
	assert.Equal(t, float64(100_000), got["last_transmission_ms"])
}

func TestHealthzDegradedWhenStale(t *testing.T) {
	clock := &fakeClock{nowMs: 100_000}
	m := NewManager(clock, prometheus.NewRegistry())
	m.MarkTransmission(1)
	clock.nowMs = 100_000 + staleAfterMs + 1

	rec := httptest.NewRecorder()
	NewHealthHandler(m).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got["status"])
}

func TestHealthzOKBeforeFirstTransmission(t *testing.T) {
	m := NewManager(&fakeClock{nowMs: 30 * 60 * 1000}, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	NewHealthHandler(m).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
}

func TestHealthzDegradedOnOverflows(t *testing.T) {
	m := NewManager(&fakeClock{}, prometheus.NewRegistry())
	m.SetBufferOverflows(1)

	rec := httptest.NewRecorder()
	NewHealthHandler(m).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got["status"])
}
