// Package registration drives one-time device registration against the
// backend: build the payload once, submit it, and retry with exponential
// backoff on retryable failures, up to five attempts per boot. Retries are
// scheduled, not slept: ProcessRetries compares the eligible time against
// the clock on every control-loop pass.
package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/timekeeper"
	"github.com/LeonardoBeccarini/greenhouse_node/internal/services/uplink"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/retry"
)

// Registrar is the transport used to submit the registration payload.
// *uplink.Client implements it.
type Registrar interface {
	RegisterDevice(ctx context.Context, payload []byte) uplink.RegistrationResult
}

// ConfirmationStore persists the server-issued confirmation id across boots.
type ConfirmationStore interface {
	ConfirmationID() string
	SetConfirmationID(id string) error
}

// DeviceInfo identifies the node in the registration payload.
type DeviceInfo struct {
	HardwareID      string
	BootID          string
	FriendlyName    string
	FirmwareVersion string
}

type capabilities struct {
	Sensors  []string        `json:"sensors"`
	Features map[string]bool `json:"features"`
}

type registrationPayload struct {
	HardwareID      string       `json:"hardware_id"`
	BootID          string       `json:"boot_id"`
	FirmwareVersion string       `json:"firmware_version"`
	FriendlyName    string       `json:"friendly_name,omitempty"`
	Capabilities    capabilities `json:"capabilities"`
}

// Manager holds the per-boot retry state machine: Idle, or Pending with an
// attempt counter and a next-eligible time.
type Manager struct {
	registrar Registrar
	store     ConfirmationStore
	clock     timekeeper.Clock

	// cached payload: every retry resubmits these exact bytes, because the
	// payload embeds the boot id the server deduplicates on.
	payload []byte

	pending     bool
	attempt     int
	nextRetryMs int64
	gaveUp      bool
}

func NewManager(registrar Registrar, store ConfirmationStore, clock timekeeper.Clock, info DeviceInfo) (*Manager, error) {
	payload, err := buildPayload(info)
	if err != nil {
		return nil, fmt.Errorf("registration: build payload: %w", err)
	}
	return &Manager{
		registrar: registrar,
		store:     store,
		clock:     clock,
		payload:   payload,
	}, nil
}

func buildPayload(info DeviceInfo) ([]byte, error) {
	return json.Marshal(registrationPayload{
		HardwareID:      info.HardwareID,
		BootID:          info.BootID,
		FirmwareVersion: info.FirmwareVersion,
		FriendlyName:    info.FriendlyName,
		Capabilities: capabilities{
			Sensors: []string{"bme280", "ds18b20", "soil_moisture"},
			Features: map[string]bool{
				"offline_buffering": true,
				"display_history":   true,
				"ntp_sync":          true,
			},
		},
	})
}

// IsRegistered reports whether a confirmation id is already stored.
func (m *Manager) IsRegistered() bool {
	return m.store.ConfirmationID() != ""
}

// Register performs the first attempt. On a retryable failure the manager
// moves to Pending and ProcessRetries takes over.
func (m *Manager) Register(ctx context.Context) bool {
	if m.IsRegistered() {
		return true
	}
	log.Printf("registration: attempting device registration")
	return m.attemptOnce(ctx)
}

// ProcessRetries runs one poll of the retry state machine. Call it from the
// control loop; it returns immediately when there is nothing eligible.
func (m *Manager) ProcessRetries(ctx context.Context) {
	if !m.pending {
		return
	}
	if m.clock.MonotonicMs() < m.nextRetryMs {
		return
	}

	log.Printf("registration: retry %d/%d", m.attempt+1, retry.MaxAttempts)
	m.attemptOnce(ctx)
}

// GaveUp reports whether registration was abandoned this boot.
func (m *Manager) GaveUp() bool { return m.gaveUp }

func (m *Manager) attemptOnce(ctx context.Context) bool {
	res := m.registrar.RegisterDevice(ctx, m.payload)

	switch {
	case res.OK() && res.ConfirmationID != "":
		if err := m.store.SetConfirmationID(res.ConfirmationID); err != nil {
			log.Printf("registration: store confirmation id: %v", err)
		}
		m.pending = false
		m.attempt = 0
		log.Printf("registration: successful, confirmation_id=%s", res.ConfirmationID)
		return true

	case res.OK():
		// 2xx without a usable confirmation id: the server misbehaved, a
		// retry with the same payload will not help.
		log.Printf("registration: response missing valid confirmation_id, not retrying")
		m.pending = false
		m.gaveUp = true
		return false

	case res.Retryable():
		m.scheduleRetry(res.StatusCode)
		return false

	default:
		log.Printf("registration: failed with status %d, not retrying", res.StatusCode)
		m.pending = false
		m.gaveUp = true
		return false
	}
}

func (m *Manager) scheduleRetry(statusCode int) {
	delay := retry.BackoffDelay(m.attempt)
	m.nextRetryMs = m.clock.MonotonicMs() + delay.Milliseconds()
	m.attempt++
	m.pending = true
	if m.attempt >= retry.MaxAttempts {
		log.Printf("registration: attempt failed with status %d, budget exhausted", statusCode)
		m.pending = false
		m.gaveUp = true
		return
	}
	log.Printf("registration: attempt failed with status %d, retry in %s", statusCode, delay)
}
