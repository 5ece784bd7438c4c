package capi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	path   string
	auth   string
	body   map[string]any
	called bool
}

func newServer(t *testing.T, status int, respBody string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func testEvent() Event {
	return Event{
		EventName:    "Purchase",
		EventTime:    time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC).Unix(),
		EventID:      "0123456789abcdef0123456789abcdef",
		ActionSource: ActionSourceWebsite,
		UserData:     UserData{Emails: []string{"hash"}, Fbp: "fb.1.123.456"},
		CustomData:   map[string]any{"value": 3600.0, "currency": "EGP"},
	}
}

func TestClient_Send_Success(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"events_received":1,"messages":[],"fbtrace_id":"trace-1"}`)

	c := NewClient(Config{
		BaseURL:       srv.URL,
		APIVersion:    "v18.0",
		PixelID:       "pixel-1",
		AccessToken:   "token-1",
		TestEventCode: "TEST123",
	}, zap.NewNop(), nil)

	resp, err := c.Send(context.Background(), testEvent())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.EventsReceived)
	assert.Equal(t, "trace-1", resp.FBTraceID)
	assert.Equal(t, "/v18.0/pixel-1/events", got.path)
	assert.Equal(t, "Bearer token-1", got.auth)
	assert.Equal(t, "TEST123", got.body["test_event_code"])

	data := got.body["data"].([]any)
	require.Len(t, data, 1)
	ev := data[0].(map[string]any)
	assert.Equal(t, "Purchase", ev["event_name"])
	assert.Equal(t, "website", ev["action_source"])
	assert.Equal(t, "fb.1.123.456", ev["user_data"].(map[string]any)["fbp"])
}

func TestClient_Send_NoTestCodeInProduction(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"events_received":1}`)

	c := NewClient(Config{
		BaseURL:       srv.URL,
		PixelID:       "pixel-1",
		AccessToken:   "token-1",
		TestEventCode: "TEST123",
		Production:    true,
	}, nil, nil)

	_, err := c.Send(context.Background(), testEvent())
	require.NoError(t, err)

	_, present := got.body["test_event_code"]
	assert.False(t, present)
	assert.Equal(t, "/"+DefaultAPIVersion+"/pixel-1/events", got.path)
}

func TestClient_Send_APIError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"error":{"message":"Invalid parameter"}}`)

	c := NewClient(Config{BaseURL: srv.URL, PixelID: "p", AccessToken: "t"}, zap.NewNop(), nil)

	_, err := c.Send(context.Background(), testEvent())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid parameter")
}

func TestClient_Send_MalformedResponse(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `not json`)

	c := NewClient(Config{BaseURL: srv.URL, PixelID: "p", AccessToken: "t"}, zap.NewNop(), nil)

	_, err := c.Send(context.Background(), testEvent())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Send_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, PixelID: "p", AccessToken: "t"}, zap.NewNop(), nil)

	_, err := c.Send(context.Background(), testEvent())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_Send_NoEvents(t *testing.T) {
	c := NewClient(Config{PixelID: "p", AccessToken: "t"}, nil, nil)
	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{PixelID: "p"}.Enabled())
	assert.True(t, Config{PixelID: "p", AccessToken: "t"}.Enabled())
}
