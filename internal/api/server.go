package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gridsim/internal/history"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gridsim/internal/metrics"
	"github.com/nerrad567/gray-logic-gridsim/internal/network"
	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SnapshotSource provides the most recent published cycle.
// *simulation.Simulator satisfies it.
type SnapshotSource interface {
	Latest() *simulation.Snapshot
	Cycles() uint64
}

// HistoryLister lists stored cycles. *history.Repository satisfies it.
type HistoryLister interface {
	List(ctx context.Context, runID string, limit int) ([]history.Entry, error)
}

// HealthChecker is implemented by every connected component.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Network   *network.Network
	Snapshots SnapshotSource
	History   HistoryLister    // optional: /history answers 503 without it
	Metrics   *metrics.Metrics // optional: /metrics is not mounted without it
	Checks    map[string]HealthChecker
	RunID     string
	Version   string
}

// Server is the HTTP status API server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	net       *network.Network
	snapshots SnapshotSource
	history   HistoryLister
	metrics   *metrics.Metrics
	checks    map[string]HealthChecker
	runID     string
	version   string

	server *http.Server
	addr   string
	mu     sync.Mutex
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, network, snapshot source)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Network == nil {
		return nil, fmt.Errorf("network is required")
	}
	if deps.Snapshots == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		net:       deps.Network.Clone(),
		snapshots: deps.Snapshots,
		history:   deps.History,
		metrics:   deps.Metrics,
		checks:    deps.Checks,
		runID:     deps.RunID,
		version:   deps.Version,
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Binding happens before Start returns, so a port already in use is
// reported here rather than logged later.
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	s.mu.Lock()
	s.server = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", s.addr)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
