package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/muurk/ledhttpd/internal/logging"
	"github.com/muurk/ledhttpd/internal/version"
)

// ErrNotRunning is returned by Stop on a server that was never started.
var ErrNotRunning = errors.New("server not running")

// ErrListen is returned by Start when the port cannot be bound.
var ErrListen = errors.New("failed to listen")

// Server is the device HTTP server
type Server struct {
	config     Config
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup

	mu          sync.Mutex
	activeConns map[string]net.Conn
	serveErr    error
	stopOnce    sync.Once
}

// New creates a new Server instance. The server is not listening until
// Start is called.
func New(config Config, handler http.Handler) *Server {
	config.applyDefaults()
	return &Server{
		config:      config,
		handler:     handler,
		activeConns: make(map[string]net.Conn),
	}
}

// Start binds the listener and serves in the background. It returns once the
// port is bound, so a bind failure is reported to the caller.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w on %s: %w", ErrListen, addr, err)
	}
	s.listener = netutil.LimitListener(ln, s.config.MaxOpenSockets)

	s.httpServer = &http.Server{
		Handler:      s.serverHeader(s.handler),
		ReadTimeout:  s.config.RecvTimeout,
		WriteTimeout: s.config.SendTimeout,
		ConnState:    s.trackConn,
	}
	s.httpServer.SetKeepAlivesEnabled(s.config.KeepAlive)

	logging.Info("Server listening for connections",
		zap.String("addr", s.listener.Addr().String()),
		zap.Int("max_open_sockets", s.config.MaxOpenSockets),
		zap.Duration("recv_timeout", s.config.RecvTimeout),
		zap.Duration("send_timeout", s.config.SendTimeout),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.httpServer.Serve(s.listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server stopped", zap.Error(err))
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// ActiveConnections returns the number of open client connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Stop shuts the server down, waiting for in-flight requests until ctx is
// done. Connections that are still open then are closed. Calling Stop more
// than once is safe.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return ErrNotRunning
	}

	var err error
	s.stopOnce.Do(func() {
		logging.Info("Stopping HTTP server", zap.Int("active_connections", s.ActiveConnections()))

		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("shutdown: %w", shutdownErr)
			_ = s.httpServer.Close()
		}
		s.wg.Wait()

		s.mu.Lock()
		if err == nil && s.serveErr != nil {
			err = s.serveErr
		}
		s.mu.Unlock()
	})
	return err
}

func (s *Server) trackConn(conn net.Conn, state http.ConnState) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case http.StateNew:
		s.activeConns[remoteAddr] = conn
		logging.Debug("Connection accepted", zap.String("remote_addr", remoteAddr))
	case http.StateHijacked, http.StateClosed:
		delete(s.activeConns, remoteAddr)
		logging.Debug("Connection closed",
			zap.String("remote_addr", remoteAddr),
			zap.String("state", state.String()),
		)
	}
}

func (s *Server) serverHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", version.UserAgent())
		next.ServeHTTP(w, r)
	})
}
