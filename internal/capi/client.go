// Package capi is a minimal client for the Meta Conversions API.
package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/stayvalue/internal/metrics"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
	DefaultTimeout    = 10 * time.Second

	// ActionSourceWebsite marks events that originate on the marketplace website.
	ActionSourceWebsite = "website"

	maxErrorBody = 64 << 10
)

var (
	// ErrTransport wraps network and request construction failures.
	ErrTransport = errors.New("capi transport error")
	// ErrMalformedResponse is returned when a 2xx body is not valid JSON.
	ErrMalformedResponse = errors.New("capi malformed response")
	// ErrNoEvents is returned when Send is called without events.
	ErrNoEvents = errors.New("capi: no events to send")
)

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("capi: status %d: %s", e.StatusCode, e.Body)
}

// Config holds the Conversions API deployment settings.
type Config struct {
	BaseURL       string
	APIVersion    string
	PixelID       string
	AccessToken   string
	TestEventCode string
	Production    bool
	Timeout       time.Duration
}

// Enabled reports whether the pixel and token are both set.
func (c Config) Enabled() bool {
	return c.PixelID != "" && c.AccessToken != ""
}

// ===========================================
// PAYLOAD
// ===========================================

// UserData carries hashed identifiers and unhashed browser signals.
type UserData struct {
	Emails      []string `json:"em,omitempty"`
	Phones      []string `json:"ph,omitempty"`
	FirstNames  []string `json:"fn,omitempty"`
	LastNames   []string `json:"ln,omitempty"`
	Cities      []string `json:"ct,omitempty"`
	Countries   []string `json:"country,omitempty"`
	ExternalIDs []string `json:"external_id,omitempty"`

	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	Fbc             string `json:"fbc,omitempty"`
	Fbp             string `json:"fbp,omitempty"`
}

// Event is one server event.
type Event struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	EventID        string         `json:"event_id"`
	ActionSource   string         `json:"action_source"`
	EventSourceURL string         `json:"event_source_url,omitempty"`
	UserData       UserData       `json:"user_data"`
	CustomData     map[string]any `json:"custom_data,omitempty"`
}

type request struct {
	Data          []Event `json:"data"`
	TestEventCode string  `json:"test_event_code,omitempty"`
}

// Response is the Graph API acknowledgement.
type Response struct {
	EventsReceived int      `json:"events_received"`
	Messages       []string `json:"messages"`
	FBTraceID      string   `json:"fbtrace_id"`
}

// ===========================================
// CLIENT
// ===========================================

// Client posts event batches to a single pixel.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a client. Empty BaseURL, APIVersion and Timeout use defaults.
func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:      cfg,
		endpoint: fmt.Sprintf("%s/%s/%s/events", strings.TrimRight(cfg.BaseURL, "/"), cfg.APIVersion, cfg.PixelID),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

// Send posts events in one request. It never retries.
func (c *Client) Send(ctx context.Context, events ...Event) (*Response, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	payload := request{Data: events}
	if !c.cfg.Production {
		payload.TestEventCode = c.cfg.TestEventCode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	eventName := events[0].EventName
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordCAPIRequest(eventName, "transport_error", time.Since(start))
		c.logger.Error("capi request failed",
			zap.String("event_name", eventName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.RecordCAPIRequest(eventName, strconv.Itoa(resp.StatusCode), time.Since(start))
		c.logger.Warn("capi rejected events",
			zap.String("event_name", eventName),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.RecordCAPIRequest(eventName, "malformed", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	c.metrics.RecordCAPIRequest(eventName, strconv.Itoa(resp.StatusCode), time.Since(start))
	c.logger.Info("capi events sent",
		zap.String("event_name", eventName),
		zap.Int("events", len(events)),
		zap.Int("events_received", out.EventsReceived),
		zap.String("fbtrace_id", out.FBTraceID),
	)

	return &out, nil
}
