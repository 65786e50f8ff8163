package datamanager

import (
	"encoding/json"
	"fmt"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
)

// BlobStore is the persistence primitive used to carry the queue and history
// across restarts. Implementations store the blob verbatim and never
// interpret it.
type BlobStore interface {
	Save(blob []byte) error
	// Load returns (nil, false, nil) when no state has been saved yet.
	Load() (blob []byte, ok bool, err error)
}

type persistedState struct {
	Queue          []model.AveragedData   `json:"queue"`
	QueueOverflows uint32                 `json:"queue_overflows"`
	Display        [][]model.DisplayPoint `json:"display"`
	LastDisplayMs  int64                  `json:"last_display_ms"`
}

// SaveState snapshots the transmission queue and display history into store.
func SaveState(store BlobStore, q *TransmissionQueue, h *DisplayHistory) error {
	st := persistedState{
		Queue:          q.Snapshot(),
		QueueOverflows: q.OverflowCount(),
		Display:        make([][]model.DisplayPoint, model.NumSensors),
		LastDisplayMs:  h.lastStoredMs,
	}
	for ch := model.SensorType(0); ch < model.NumSensors; ch++ {
		st.Display[ch] = h.Series(ch, 0)
	}

	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := store.Save(blob); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// RestoreState reloads a snapshot saved by SaveState. A missing snapshot is
// not an error; a corrupt one is reported and both buffers are left empty
// rather than half-filled.
func RestoreState(store BlobStore, q *TransmissionQueue, h *DisplayHistory) error {
	blob, ok, err := store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return nil
	}

	var st persistedState
	if err := json.Unmarshal(blob, &st); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}

	q.restore(st.Queue, st.QueueOverflows)
	for ch := model.SensorType(0); ch < model.NumSensors; ch++ {
		if int(ch) < len(st.Display) {
			h.restore(ch, st.Display[ch], st.LastDisplayMs)
		}
	}
	return nil
}
