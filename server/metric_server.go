// Package server hosts the operational HTTP endpoints: pprof profiles,
// expvar metrics and the statsviz runtime dashboard. It carries no
// catalogue data; queries never flow through it.
package server

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/arl/statsviz"

	"github.com/INLOpen/nexuscatalog/config"
)

const defaultListenAddress = ":6060"

// MetricsServer is the debug HTTP server. Endpoints are mounted
// according to the debug configuration, so a production deployment can
// expose metrics without also exposing profiling.
type MetricsServer struct {
	server  *http.Server
	logger  *slog.Logger
	started bool
	mu      sync.Mutex
}

// NewMetricsServer builds the server from the debug configuration.
func NewMetricsServer(cfg *config.DebugConfig, logger *slog.Logger) *MetricsServer {
	logger = logger.With("component", "MetricsServer")
	mux := http.NewServeMux()

	if cfg.PProfEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		logger.Info("pprof endpoints enabled under /debug/pprof/")
	}
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", expvar.Handler())
		logger.Info("expvar metrics endpoint enabled at /metrics")
	}
	if cfg.MonitorUIEnabled {
		err := statsviz.Register(mux,
			statsviz.Root("/viz"),
			statsviz.SendFrequency(250*time.Millisecond),
		)
		if err != nil {
			logger.Warn("Could not register the runtime dashboard.", "error", err)
		} else {
			logger.Info("Runtime dashboard enabled at /viz")
		}
	}

	addr := cfg.ListenAddress
	if addr == "" {
		addr = defaultListenAddress
	}

	return &MetricsServer{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start runs the server and blocks until Stop is called or the
// listener fails.
func (s *MetricsServer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("Debug server listening.", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Debug server failed.", "error", err)
		return fmt.Errorf("failed to start debug server: %w", err)
	}
	return nil
}

// Stop shuts the server down, allowing in-flight requests up to five
// seconds to finish. Calling Stop on a stopped server is a no-op.
func (s *MetricsServer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("Stopping debug server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Debug server shutdown failed.", "error", err)
		return
	}
	s.logger.Info("Debug server stopped.")
}
