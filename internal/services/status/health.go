package status

import (
	"encoding/json"
	"net/http"
)

// staleAfterMs: a node that has not gotten a batch accepted for this long is
// degraded, not down; it keeps buffering either way.
const staleAfterMs = 10 * 60 * 1000

type healthHandler struct {
	mgr *Manager
}

func NewHealthHandler(m *Manager) http.Handler {
	return &healthHandler{mgr: m}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Status             string `json:"status"`
		UptimeMs           int64  `json:"uptime_ms"`
		QueueDepth         int    `json:"queue_depth"`
		LastTransmissionMs int64  `json:"last_transmission_ms"`
		NetworkFailures    uint32 `json:"network_failures"`
		BufferOverflows    uint32 `json:"buffer_overflows"`
	}

	snap := h.mgr.Snapshot()
	st := resp{
		UptimeMs:           snap.UptimeMs,
		QueueDepth:         snap.QueueDepth,
		LastTransmissionMs: snap.LastTransmissionMs,
		NetworkFailures:    snap.Errors.NetworkFailures,
		BufferOverflows:    snap.Errors.BufferOverflows,
	}

	noTxYet := snap.LastTransmissionMs == 0
	stale := !noTxYet && snap.UptimeMs-snap.LastTransmissionMs > staleAfterMs
	switch {
	case stale || snap.Errors.BufferOverflows > 0:
		st.Status = "degraded"
	default:
		st.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}
