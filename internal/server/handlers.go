package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/muurk/ledhttpd/internal/etag"
	"github.com/muurk/ledhttpd/internal/logging"
)

//go:embed web/index.html
var indexHTML []byte

// LEDController is the part of the LED the HTTP API drives.
type LEDController interface {
	On() error
	Off() error
	State() (bool, error)
}

// IndexPage returns the embedded index page, gzip-compressed.
func IndexPage() (etag.Payload, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return etag.Payload{}, err
	}
	if _, err := zw.Write(indexHTML); err != nil {
		return etag.Payload{}, fmt.Errorf("compress index: %w", err)
	}
	if err := zw.Close(); err != nil {
		return etag.Payload{}, fmt.Errorf("compress index: %w", err)
	}

	return etag.Payload{
		Body:            buf.Bytes(),
		ContentType:     "text/html; charset=utf-8",
		ContentEncoding: "gzip",
	}, nil
}

// Handlers serves the device routes.
type Handlers struct {
	LED         LEDController
	Fingerprint etag.Fingerprint
	Page        etag.Payload
	Events      *Hub         // optional
	Metrics     http.Handler // optional
}

type routeDef struct {
	path    string
	method  string
	handler http.HandlerFunc
}

// Register adds every route to r. Optional routes are skipped when their
// handler is nil.
func (h *Handlers) Register(r *Router) error {
	routes := []routeDef{
		{"/", http.MethodGet, h.Index},
		{"/index.html", http.MethodGet, h.IndexRedirect},
		{"/api/led/on", http.MethodPost, h.LEDOn},
		{"/api/led/off", http.MethodPost, h.LEDOff},
		{"/api/led", http.MethodGet, h.LEDState},
	}
	if h.Events != nil {
		routes = append(routes, routeDef{"/api/events", http.MethodGet, h.Events.ServeWS})
	}
	if h.Metrics != nil {
		routes = append(routes, routeDef{"/metrics", http.MethodGet, h.Metrics.ServeHTTP})
	}

	for _, rt := range routes {
		if err := r.RegisterRoute(rt.path, rt.method, rt.handler); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", rt.method, rt.path, err)
		}
	}
	return nil
}

// Index serves the page, answering 304 when the client already has it.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	outcome := etag.Serve(w, r, h.Fingerprint, h.Page)
	logging.Debug("Index served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("outcome", outcome.String()),
	)
}

// IndexRedirect sends /index.html to /.
func (h *Handlers) IndexRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Location", "/")
	w.WriteHeader(http.StatusTemporaryRedirect)
}

// LEDOn lights the LED.
func (h *Handlers) LEDOn(w http.ResponseWriter, r *http.Request) {
	h.setLED(w, r, true)
}

// LEDOff switches the LED off.
func (h *Handlers) LEDOff(w http.ResponseWriter, r *http.Request) {
	h.setLED(w, r, false)
}

func (h *Handlers) setLED(w http.ResponseWriter, r *http.Request, on bool) {
	var err error
	if on {
		err = h.LED.On()
	} else {
		err = h.LED.Off()
	}
	if err != nil {
		logging.Error("Failed to set LED",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Bool("on", on),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// LEDState reports whether the LED is lit.
func (h *Handlers) LEDState(w http.ResponseWriter, r *http.Request) {
	on, err := h.LED.State()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		On bool `json:"on"`
	}{On: on})
}
