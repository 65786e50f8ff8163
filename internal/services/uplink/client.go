// Package uplink is the HTTP transport towards the backend: telemetry
// upload, device registration and a cheap connectivity probe. A circuit
// breaker sits in front of the API so a dead backend fails fast instead of
// burning a full timeout on every cycle.
package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/greenhouse_node/internal/model"
	"github.com/LeonardoBeccarini/greenhouse_node/pkg/retry"
)

const (
	defaultTimeout         = 10 * time.Second
	connectivityTimeout    = 5 * time.Second
	defaultConnectivityURL = "http://clients3.google.com/generate_204"

	maxResponseBytes = 1 << 20
)

type Config struct {
	Endpoint        string // data endpoint, e.g. https://api.example.com/api/v1/data
	APIToken        string
	DeviceID        string
	Timeout         time.Duration // per-attempt POST timeout, default 10s
	ConnectivityURL string
}

// SendResult is the outcome of one telemetry POST. StatusCode 0 means the
// request never reached the server (transport failure).
type SendResult struct {
	StatusCode int
	AckedIDs   []string
	Err        error
}

func (r SendResult) OK() bool {
	return r.StatusCode == http.StatusOK ||
		r.StatusCode == http.StatusCreated ||
		r.StatusCode == http.StatusNoContent
}

// Retryable reports whether the coordinator should try this send again.
func (r SendResult) Retryable() bool {
	return retry.ShouldRetry(r.StatusCode)
}

// RegistrationResult is the outcome of one registration POST.
type RegistrationResult struct {
	StatusCode     int
	ConfirmationID string
	Err            error
}

func (r RegistrationResult) OK() bool {
	return r.StatusCode == http.StatusOK || r.StatusCode == http.StatusCreated
}

func (r RegistrationResult) Retryable() bool {
	return retry.ShouldRetry(r.StatusCode)
}

type Client struct {
	cfg     Config
	http    *http.Client
	probe   *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConnectivityURL == "" {
		cfg.ConnectivityURL = defaultConnectivityURL
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		probe: &http.Client{Timeout: connectivityTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "telemetry-api",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				// Two full inline-retry cycles before tripping.
				return c.ConsecutiveFailures >= 2*retry.MaxAttempts
			},
		}),
	}
}

// SendReadings POSTs the batch to the data endpoint and extracts the
// acknowledged batch ids from the response. A malformed or ack-less response
// on a 2xx is reported as success with no acks.
func (c *Client) SendReadings(ctx context.Context, batch []model.AveragedData, status model.SystemStatus) SendResult {
	if len(batch) == 0 {
		return SendResult{StatusCode: http.StatusNoContent}
	}
	if strings.TrimSpace(c.cfg.Endpoint) == "" {
		return SendResult{Err: fmt.Errorf("uplink: API endpoint not configured")}
	}

	body, err := json.Marshal(buildUploadPayload(c.cfg.DeviceID, batch, status))
	if err != nil {
		return SendResult{Err: fmt.Errorf("uplink: marshal payload: %w", err)}
	}

	resp, err := c.execute(ctx, c.cfg.Endpoint, body, "Bearer")
	if resp == nil {
		return SendResult{Err: fmt.Errorf("uplink: %w", err)}
	}

	res := SendResult{StatusCode: resp.statusCode}
	if res.OK() {
		res.AckedIDs = parseAcknowledgedBatchIDs(resp.body)
	}
	return res
}

// RegisterDevice POSTs the cached registration payload to the derived
// registration endpoint and extracts the confirmation id.
func (c *Client) RegisterDevice(ctx context.Context, payload []byte) RegistrationResult {
	if strings.TrimSpace(c.cfg.Endpoint) == "" {
		return RegistrationResult{Err: fmt.Errorf("uplink: API endpoint not configured")}
	}

	endpoint := DeriveRegisterEndpoint(c.cfg.Endpoint)

	resp, err := c.execute(ctx, endpoint, payload, "X-API-Key")
	if resp == nil {
		return RegistrationResult{Err: fmt.Errorf("uplink: %w", err)}
	}

	res := RegistrationResult{StatusCode: resp.statusCode}
	if res.OK() {
		id, perr := parseConfirmationID(resp.body)
		if perr != nil {
			log.Printf("uplink: registration response: %v", perr)
		} else {
			res.ConfirmationID = id
		}
	}
	return res
}

// VerifyConnectivity does a lightweight GET against a generate-204 endpoint.
// WiFi association alone does not prove the backend is reachable.
func (c *Client) VerifyConnectivity(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ConnectivityURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK
}

type postResponse struct {
	statusCode int
	body       []byte
}

// errServerStatus marks a 5xx so the breaker counts it as a failure; the
// response itself is still propagated to the caller.
var errServerStatus = errors.New("server error status")

// execute runs one POST through the circuit breaker. A nil response means
// the request never produced a status (transport failure or breaker open).
func (c *Client) execute(ctx context.Context, url string, body []byte, authScheme string) (*postResponse, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		resp, perr := c.post(ctx, url, body, authScheme)
		if perr != nil {
			return nil, perr
		}
		if resp.statusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if out == nil {
		return nil, err
	}
	return out.(*postResponse), err
}

func (c *Client) post(ctx context.Context, url string, body []byte, authScheme string) (*postResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIToken != "" {
		if authScheme == "X-API-Key" {
			req.Header.Set("X-API-Key", c.cfg.APIToken)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		// We got a status line; keep it and drop the body.
		respBody = nil
	}
	return &postResponse{statusCode: resp.StatusCode, body: respBody}, nil
}

// parseAcknowledgedBatchIDs never fails: a malformed body or a missing field
// means "assume nothing acknowledged, keep everything queued".
func parseAcknowledgedBatchIDs(body []byte) []string {
	if len(body) == 0 {
		return nil
	}
	var ack ackResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		log.Printf("uplink: unparseable ack response, keeping queue: %v", err)
		return nil
	}
	return ack.AcknowledgedBatchIDs
}

func parseConfirmationID(body []byte) (string, error) {
	var resp struct {
		ConfirmationID string `json:"confirmation_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unparseable body: %w", err)
	}
	if resp.ConfirmationID == "" {
		return "", fmt.Errorf("missing confirmation_id")
	}
	id, err := uuid.Parse(resp.ConfirmationID)
	if err != nil || id.Version() != 4 {
		return "", fmt.Errorf("confirmation_id is not a UUIDv4: %q", resp.ConfirmationID)
	}
	return resp.ConfirmationID, nil
}
