package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
)

const (
	// DefaultPort is where captive-portal probes arrive.
	DefaultPort = 80

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Server serves one handler at a time. It can be started again after
// Shutdown, which the portal does for every session.
type Server struct {
	config *Config

	mu          sync.Mutex
	listener    net.Listener
	httpServer  *http.Server
	done        chan struct{}
	activeConns map[net.Conn]http.ConnState
}

// New creates a new Server instance
func New(config *Config) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	return &Server{
		config:      config,
		activeConns: make(map[net.Conn]http.ConnState),
	}
}

// Serve binds the listener and serves h in the background.
func (s *Server) Serve(h http.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("server already running")
	}

	addr := s.config.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		ConnState:         s.trackConn,
	}
	done := make(chan struct{})

	s.listener = listener
	s.httpServer = srv
	s.done = done

	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Portal web server stopped", zap.Error(err))
		}
	}()

	logging.Info("Portal web server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

func (s *Server) trackConn(conn net.Conn, state http.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case http.StateClosed:
		delete(s.activeConns, conn)
		logging.Debug("Connection closed", zap.String("remote_addr", conn.RemoteAddr().String()))
	case http.StateNew:
		s.activeConns[conn] = state
		logging.Debug("Connection accepted", zap.String("remote_addr", conn.RemoteAddr().String()))
	default:
		// Hijacked connections (websockets) stay tracked so Shutdown
		// can close them.
		s.activeConns[conn] = state
	}
}

// Addr returns the bound listener address, or nil when not serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpServer, s.done
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	logging.Info("Shutting down portal web server...")

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		_ = srv.Close()
	}

	s.mu.Lock()
	for conn, state := range s.activeConns {
		if state == http.StateHijacked {
			logging.Info("Closing active connection", zap.String("remote_addr", conn.RemoteAddr().String()))
			_ = conn.Close()
		}
		delete(s.activeConns, conn)
	}
	s.mu.Unlock()

	<-done
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
