// Package server provides the HTTP API of the mwstate daemon over a unix socket.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/mwstate/internal/daemon/engine"
	"github.com/sirupsen/logrus"
)

// RunningConfig describes the configuration the daemon was started with.
// It is exposed via /api/config so clients can verify what is active.
type RunningConfig struct {
	MiddlewareURL string    `json:"middleware_url"`
	Subscribe     []string  `json:"subscribe"`
	Discover      bool      `json:"discover"`
	QueueSize     int       `json:"queue_size"`
	ConfigFile    string    `json:"config_file,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	mu            sync.Mutex
	server        *http.Server
	cancelStreams context.CancelFunc
	engine        *engine.Engine
	runningConfig *RunningConfig
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
	}
}

// SetEngine sets the engine whose store and queue the server exposes.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Query surface
	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("GET /api/subscriptions", s.handleGetSubscriptions)
	mux.HandleFunc("GET /api/subscriptions/{mask...}", s.handleGetSubscription)
	mux.HandleFunc("GET /api/services", s.handleGetServices)
	mux.HandleFunc("GET /api/methods", s.handleGetMethods)
	mux.HandleFunc("GET /api/methods/{service}", s.handleGetServiceMethods)
	mux.HandleFunc("GET /api/events", s.handleGetEvents)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	// Producers and listeners
	mux.HandleFunc("POST /api/dispatch", s.handleDispatch)
	mux.HandleFunc("GET /api/stream", s.handleStream)

	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	// Requests derive from baseCtx so Shutdown can end open streams.
	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	s.mu.Lock()
	s.server = srv
	s.cancelStreams = cancel
	s.mu.Unlock()

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return srv.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	srv, cancel := s.server, s.cancelStreams
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
