package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/ledhttpd/internal/etag"
)

const testFingerprint = etag.Fingerprint(`"0123456789abcdef"`)

type fakeLED struct {
	mu   sync.Mutex
	on   bool
	fail error
}

func (l *fakeLED) On() error  { return l.set(true) }
func (l *fakeLED) Off() error { return l.set(false) }

func (l *fakeLED) set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.on = on
	return nil
}

func (l *fakeLED) State() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordResponse(route string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[fmt.Sprintf("%s %d", route, status)]++
}

func (c *countingRecorder) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

func newTestRouter(t *testing.T, led *fakeLED, hub *Hub, rec ResponseRecorder) *Router {
	t.Helper()
	page, err := IndexPage()
	require.NoError(t, err)

	r := NewRouter(DefaultMaxRouteHandlers, rec)
	h := &Handlers{LED: led, Fingerprint: testFingerprint, Page: page, Events: hub}
	require.NoError(t, h.Register(r))
	return r
}

func TestRouter_RegisterRouteLimit(t *testing.T) {
	r := NewRouter(2, nil)
	noop := func(http.ResponseWriter, *http.Request) {}

	require.NoError(t, r.RegisterRoute("/a", "get", noop))
	require.NoError(t, r.RegisterRoute("/a", http.MethodPost, noop))

	err := r.RegisterRoute("/b", http.MethodGet, noop)
	assert.ErrorIs(t, err, ErrTooManyHandlers)
	assert.Equal(t, []Route{{"GET", "/a"}, {"POST", "/a"}}, r.Routes())
}

func TestRouter_RegisterRouteInvalid(t *testing.T) {
	r := NewRouter(0, nil)
	noop := func(http.ResponseWriter, *http.Request) {}

	assert.ErrorIs(t, r.RegisterRoute("", http.MethodGet, noop), ErrInvalidRoute)
	assert.ErrorIs(t, r.RegisterRoute("x", http.MethodGet, noop), ErrInvalidRoute)
	assert.ErrorIs(t, r.RegisterRoute("/x", "", noop), ErrInvalidRoute)
	assert.ErrorIs(t, r.RegisterRoute("/x", http.MethodGet, nil), ErrInvalidRoute)

	require.NoError(t, r.RegisterRoute("/x", http.MethodGet, noop))
	assert.ErrorIs(t, r.RegisterRoute("/x", http.MethodGet, noop), ErrInvalidRoute)
	assert.Len(t, r.Routes(), 1)
}

func TestHandlers_FitInFirmwareRouteTable(t *testing.T) {
	r := NewRouter(DefaultMaxRouteHandlers, nil)
	h := &Handlers{LED: &fakeLED{}, Events: NewHub(), Metrics: http.NotFoundHandler()}
	require.NoError(t, h.Register(r))
	assert.Len(t, r.Routes(), 7)
}

func TestIndex_NotModified(t *testing.T) {
	rec := &countingRecorder{}
	r := newTestRouter(t, &fakeLED{}, nil, rec)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", string(testFingerprint))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())
	assert.Equal(t, []string{string(testFingerprint)}, w.Result().Header.Values("ETag"))
	assert.Equal(t, 1, rec.get("/ 304"))
}

func TestIndex_Deliver(t *testing.T) {
	r := newTestRouter(t, &fakeLED{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", `"zzzzzzzzzzzzzzzz"`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(testFingerprint), w.Header().Get("ETag"))
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "no-cache, must-revalidate", w.Header().Get("Cache-Control"))

	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	html, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, indexHTML, html)
}

func TestIndexRedirect(t *testing.T) {
	r := newTestRouter(t, &fakeLED{}, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Empty(t, w.Body.Bytes())
}

func TestLEDRoutes(t *testing.T) {
	led := &fakeLED{}
	r := newTestRouter(t, led, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/led/on", nil))
	require.Equal(t, http.StatusOK, w.Code)
	on, _ := led.State()
	assert.True(t, on)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/led", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var state struct{ On bool }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.On)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/led/off", nil))
	require.Equal(t, http.StatusOK, w.Code)
	on, _ = led.State()
	assert.False(t, on)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/led/on", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestLEDRoutes_PinFailure(t *testing.T) {
	led := &fakeLED{fail: errors.New("pin 8 is not an output")}
	r := newTestRouter(t, led, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/led/on", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "pin 8 is not an output")
}

func TestEvents_PushesLEDChanges(t *testing.T) {
	hub := NewHub()
	hub.PublishLED(false)
	ts := httptest.NewServer(newTestRouter(t, &fakeLED{}, hub, nil))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev LEDEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "led", ev.Type)
	assert.False(t, ev.On)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)
	hub.PublishLED(true)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.True(t, ev.On)

	require.NoError(t, hub.Close())
	assert.Zero(t, hub.Clients())

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestServer_StartStop(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", Port: 0}, newTestRouter(t, &fakeLED{}, nil, nil))
	assert.ErrorIs(t, srv.Stop(context.Background()), ErrNotRunning)

	require.NoError(t, srv.Start())
	require.NotZero(t, srv.Port())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/index.html", srv.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "redirect should be followed to /")
	assert.True(t, strings.HasPrefix(resp.Header.Get("Server"), "ledhttpd/"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))

	_, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/", srv.Port()))
	assert.Error(t, err)
}

func TestServer_PortInUse(t *testing.T) {
	first := New(Config{Host: "127.0.0.1"}, http.NotFoundHandler())
	require.NoError(t, first.Start())
	defer first.Stop(context.Background())

	second := New(Config{Host: "127.0.0.1", Port: first.Port()}, http.NotFoundHandler())
	assert.ErrorIs(t, second.Start(), ErrListen)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, 4, cfg.MaxOpenSockets)
	assert.Equal(t, 10*time.Second, cfg.RecvTimeout)
	assert.Equal(t, 10*time.Second, cfg.SendTimeout)
	assert.True(t, cfg.KeepAlive)
}
