// Package backend is the HTTP client for the audio backend: the realtime
// capability query, the diagnostic stream status, and chunked stream URL
// construction. The backend's media pipeline itself is out of scope; only
// the client-visible contract lives here.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/config"
)

// DefaultTimeout bounds backend requests when the config carries none.
const DefaultTimeout = 15 * time.Second

// StreamStatus is the diagnostic snapshot returned by the backend. It is
// consumed for display and logging only and never gates control flow.
type StreamStatus struct {
	IsActive      bool    `json:"is_active"`
	StatusText    string  `json:"status_text"`
	AvgSpeed      float64 `json:"avg_speed"`
	TotalMB       float64 `json:"total_mb"`
	Duration      float64 `json:"duration"`
	ActiveClients int     `json:"active_clients"`
	Format        string  `json:"format"`
}

// realtimeConfig is the wire shape of GET /config/webrtc-enabled.
type realtimeConfig struct {
	Enabled bool `json:"webrtc_enabled"`
}

// Breaker defaults for the control-plane queries.
const (
	breakerFailureThreshold = 5
	breakerCooldown         = 30 * time.Second
)

// Client talks to the audio backend.
type Client struct {
	baseURL   string
	signalURL string
	http      *http.Client
	breaker   *breaker
	logger    *slog.Logger

	// The realtime capability answer is cached for the whole session,
	// including "no" and query failures. See RealtimeSupported.
	realtimeOnce sync.Once
	realtimeOK   bool
}

// New creates a backend client from configuration.
func New(cfg config.BackendConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		signalURL: cfg.SignalURL,
		http:      &http.Client{Timeout: timeout},
		breaker:   newBreaker(breakerFailureThreshold, breakerCooldown),
		logger:    logger,
	}
}

// RealtimeSupported reports whether the backend advertises realtime
// transport support. The backend is queried at most once per session; a
// failed query counts as "not supported" and is not retried.
func (c *Client) RealtimeSupported(ctx context.Context) bool {
	c.realtimeOnce.Do(func() {
		var rc realtimeConfig
		if err := c.getJSON(ctx, "/config/webrtc-enabled", &rc); err != nil {
			c.logger.Warn("realtime capability query failed, treating as unavailable",
				slog.String("error", err.Error()),
			)
			return
		}
		c.realtimeOK = rc.Enabled
		c.logger.Debug("realtime capability cached", slog.Bool("supported", rc.Enabled))
	})
	return c.realtimeOK
}

// StreamStatus fetches the diagnostic stream status.
func (c *Client) StreamStatus(ctx context.Context) (*StreamStatus, error) {
	var st StreamStatus
	if err := c.getJSON(ctx, "/stream/status", &st); err != nil {
		return nil, fmt.Errorf("fetching stream status: %w", err)
	}
	return &st, nil
}

// StreamURL returns the chunked fallback transport URL for a format.
func (c *Client) StreamURL(id codec.ID) string {
	return fmt.Sprintf("%s/stream/play?format=%s", c.baseURL, url.QueryEscape(string(id)))
}

// SignalURL returns the realtime signaling endpoint. When not configured
// it is derived from the base URL by switching to the ws scheme.
func (c *Client) SignalURL() string {
	if c.signalURL != "" {
		return c.signalURL
	}
	derived := c.baseURL + "/signal"
	derived = strings.Replace(derived, "https://", "wss://", 1)
	derived = strings.Replace(derived, "http://", "ws://", 1)
	return derived
}

// BreakerState reports the control-plane circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// getJSON performs a GET and decodes a JSON body. Requests run through
// the circuit breaker so a dead backend fails fast instead of adding a
// timeout to every poll.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if !c.breaker.Allow() {
		return ErrBreakerOpen
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return fmt.Errorf("requesting %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("decoding %s response: %w", path, err)
	}

	c.breaker.RecordSuccess()
	return nil
}
