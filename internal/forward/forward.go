// Package forward delivers scan payloads and health logs to the remote server.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

var (
	// ErrForwardFailed means a payload was not accepted by the server.
	ErrForwardFailed = errors.New("forward failed")

	// ErrPeerUnreachable means the server could not be contacted at all.
	ErrPeerUnreachable = errors.New("peer unreachable")
)

// Defaults for the zero values in Config.
const (
	DefaultAPIPath        = "/api/post"
	DefaultHealthLogPath  = "/api/health-log"
	DefaultForwardTimeout = 10 * time.Second
	DefaultPeerTimeout    = 5 * time.Second
)

// Transport is what the agent needs from the server side.
type Transport interface {
	// Forward POSTs one payload. No retry.
	Forward(ctx context.Context, payload string) error

	// CheckPeer reports whether the server answers at all.
	CheckPeer(ctx context.Context) bool

	// PostHealthLog sends a health record with errors.
	PostHealthLog(ctx context.Context, entry HealthLog) error
}

// Config locates the server.
type Config struct {
	// BaseURL is probed by CheckPeer, e.g. "http://127.0.0.1:5173".
	BaseURL       string
	APIPath       string
	HealthLogPath string

	ForwardTimeout time.Duration
	PeerTimeout    time.Duration
}

// ScanPayload is the body of a forward request.
type ScanPayload struct {
	ID string `json:"id"`
}

// HealthLog is the body of a health-log request.
type HealthLog struct {
	Type      string          `json:"type"`
	AgentID   string          `json:"agent_id,omitempty"`
	Hostname  string          `json:"hostname"`
	Timestamp string          `json:"timestamp"`
	Errors    []string        `json:"errors"`
	Status    HealthLogStatus `json:"status"`
}

// HealthLogStatus holds per-check states ("OK", "ERROR", "INACTIVE").
type HealthLogStatus struct {
	SerialPort       string `json:"serial_port"`
	ServerConnection string `json:"server_connection"`
	Scanner          string `json:"scanner"`
}

// HealthLogType is the type field of every health log.
const HealthLogType = "health_error"

// Client talks to the server over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a Client with a pooled HTTP client that carries no
// shared global state.
func NewClient(cfg Config) *Client {
	if cfg.APIPath == "" {
		cfg.APIPath = DefaultAPIPath
	}
	if cfg.HealthLogPath == "" {
		cfg.HealthLogPath = DefaultHealthLogPath
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}
	if cfg.PeerTimeout <= 0 {
		cfg.PeerTimeout = DefaultPeerTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: cleanhttp.DefaultPooledClient(),
	}
}

// APIURL returns the forward endpoint.
func (c *Client) APIURL() string {
	return c.cfg.BaseURL + c.cfg.APIPath
}

// HealthLogURL returns the health-log endpoint.
func (c *Client) HealthLogURL() string {
	return c.cfg.BaseURL + c.cfg.HealthLogPath
}

// Forward POSTs {"id": payload}. A transport error or non-2xx status
// returns an error wrapping ErrForwardFailed.
func (c *Client) Forward(ctx context.Context, payload string) error {
	body, err := json.Marshal(ScanPayload{ID: payload})
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrForwardFailed, err)
	}
	if err := c.postJSON(ctx, c.APIURL(), body, c.cfg.ForwardTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrForwardFailed, err)
	}
	return nil
}

// CheckPeer GETs the base URL. Any HTTP response, whatever its status,
// counts as reachable; only a transport failure does not.
func (c *Client) CheckPeer(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Ping is CheckPeer with the failure reason.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PeerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPeerUnreachable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPeerUnreachable, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// PostHealthLog POSTs entry to the health-log endpoint.
func (c *Client) PostHealthLog(ctx context.Context, entry HealthLog) error {
	if entry.Type == "" {
		entry.Type = HealthLogType
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode health log: %w", err)
	}
	if err := c.postJSON(ctx, c.HealthLogURL(), body, c.cfg.ForwardTimeout); err != nil {
		return fmt.Errorf("post health log: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, body []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
