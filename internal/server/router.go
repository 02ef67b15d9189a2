package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/muurk/ledhttpd/internal/logging"
)

var (
	// ErrTooManyHandlers is returned when the route table is full.
	ErrTooManyHandlers = errors.New("too many route handlers")

	// ErrInvalidRoute is returned for an empty path, empty method, nil
	// handler or a route that is already registered.
	ErrInvalidRoute = errors.New("invalid route")
)

// ResponseRecorder receives the status of every response, keyed by route
// pattern. *metrics.Metrics satisfies it.
type ResponseRecorder interface {
	RecordResponse(route string, status int)
}

// Route is one registered handler.
type Route struct {
	Method string
	Path   string
}

// String returns "METHOD path"
func (r Route) String() string {
	return r.Method + " " + r.Path
}

// Router is a bounded route table on top of chi.
type Router struct {
	mux      chi.Router
	max      int
	recorder ResponseRecorder

	mu     sync.Mutex
	routes []Route
}

// NewRouter creates a router that accepts at most maxHandlers routes.
// recorder may be nil.
func NewRouter(maxHandlers int, recorder ResponseRecorder) *Router {
	if maxHandlers <= 0 {
		maxHandlers = DefaultMaxRouteHandlers
	}

	rt := &Router{
		mux:      chi.NewRouter(),
		max:      maxHandlers,
		recorder: recorder,
	}

	// Middleware stack - order matters
	rt.mux.Use(middleware.RequestID)
	rt.mux.Use(rt.requestLogger)
	rt.mux.Use(middleware.Recoverer)

	return rt
}

// RegisterRoute adds a handler for method and path.
func (rt *Router) RegisterRoute(path, method string, handler http.HandlerFunc) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if path == "" || !strings.HasPrefix(path, "/") || method == "" || handler == nil {
		return fmt.Errorf("%s %q: %w", method, path, ErrInvalidRoute)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	route := Route{Method: method, Path: path}
	for _, existing := range rt.routes {
		if existing == route {
			return fmt.Errorf("%s already registered: %w", route, ErrInvalidRoute)
		}
	}
	if len(rt.routes) >= rt.max {
		return fmt.Errorf("cannot register %s, limit is %d: %w", route, rt.max, ErrTooManyHandlers)
	}

	rt.mux.MethodFunc(method, path, handler)
	rt.routes = append(rt.routes, route)

	logging.Debug("Route registered", zap.String("route", route.String()))
	return nil
}

// Routes returns the registered routes in registration order.
func (rt *Router) Routes() []Route {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]Route(nil), rt.routes...)
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// requestLogger logs each request and feeds the response recorder.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		headers := make(map[string]string, len(r.Header))
		for key, values := range r.Header {
			headers[key] = strings.Join(values, ", ")
		}
		logging.Debug("HTTP request headers",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Any("headers", headers),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		logging.Info("HTTP request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)

		if rt.recorder != nil {
			rt.recorder.RecordResponse(route, status)
		}
	})
}
