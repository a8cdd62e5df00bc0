// Package server provides an HTTP server for the taskmonitor.
//
// The server owns the live task session, feeds it observations from the NATS
// bus and publishes its statuses back to the bus. A REST API exposes the
// session for monitoring and manual control.
//
// # Endpoints
//
//   - GET /health - "ok" while a session is live, "degraded" or 503 otherwise
//   - GET /api/info - Build and host properties
//   - GET /api/status - Live task status, session summary and next heartbeat
//   - GET /api/task - Definition of the task being tracked
//   - GET /config - Returns current configuration as YAML
//   - POST /reload - Reloads configuration from disk
//   - POST /reset - Archives the live session and starts a new one
//   - POST /observe - Injects an activity observation
//   - GET /history - Returns archived sessions
//   - GET /history/logs?id= - Returns captured logs of a session
//   - POST /history/reload - Re-reads archived sessions from disk
//   - GET /metrics - Prometheus metrics
//
// # Architecture
//
// Server-level deps are swapped atomically on reload. Each session is built
// from the config current at the time it starts, so task changes take effect
// on the next reset without disturbing the running session. Listener, bus and
// history settings are read once at startup.
//
// # Example
//
//	srv, err := server.New("/etc/taskmonitor/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/nomis52/taskmonitor/buildinfo"
	"github.com/nomis52/taskmonitor/bus"
	"github.com/nomis52/taskmonitor/config"
	"github.com/nomis52/taskmonitor/logging"
	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/metrics"
	"github.com/nomis52/taskmonitor/monitor"
	"github.com/nomis52/taskmonitor/server/cron"
	"github.com/nomis52/taskmonitor/server/handlers"
	"github.com/nomis52/taskmonitor/server/tracker"
	"github.com/nomis52/taskmonitor/server/types"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Cron actions.
const (
	ActionRefresh = "refresh"
	ActionReset   = "reset"
)

// ReasonScheduled marks sessions archived by a scheduled reset.
const ReasonScheduled = "scheduled"

var availableActions = map[string]bool{
	ActionRefresh: true,
	ActionReset:   true,
}

// serverDeps holds config-derived dependencies that are swapped atomically on reload.
type serverDeps struct {
	config *config.Config
}

// Server is the HTTP server of the taskmonitor.
type Server struct {
	addr        string
	configPath  string
	watchConfig bool
	logger      *logging.Logger
	deps        atomic.Pointer[serverDeps]
	httpServer  *http.Server
	props       types.ServerProperties

	registry    *metrics.ScrapeRegistry
	tracker     *tracker.Tracker
	diskStore   *tracker.DiskStore
	cronManager *cron.CronTriggerManager

	busConn  bus.Conn
	natsConn *bus.NATSConn
	bridge   *bus.Bridge
}

// Option configures a Server.
type Option func(*Server)

// WithListenAddr overrides the listen address from the config file.
func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithConfigWatch reloads the configuration whenever the config file changes.
func WithConfigWatch() Option {
	return func(s *Server) {
		s.watchConfig = true
	}
}

// WithBusConn uses conn instead of dialing the NATS URL from the config.
func WithBusConn(conn bus.Conn) Option {
	return func(s *Server) {
		s.busConn = conn
	}
}

// New creates a new Server with the given config path and options.
// It loads the configuration and initializes all dependencies.
func New(configPath string, opts ...Option) (*Server, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	s := &Server{
		addr:       cfg.Listener.Addr,
		configPath: configPath,
		logger:     logger,
		props: types.ServerProperties{
			Build:     buildinfo.Get(),
			StartedAt: time.Now(),
			Hostname:  hostname,
		},
	}
	s.deps.Store(&serverDeps{config: cfg})
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) init(cfg *config.Config) error {
	registry, err := metrics.NewScrapeRegistry(metrics.WithNamespace(cfg.Monitoring.MetricsPrefix))
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}
	s.registry = registry

	sessionMetrics, err := monitor.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register session metrics: %w", err)
	}

	var store tracker.StateStore = tracker.NewMemoryStore(cfg.History.MaxSessions)
	if cfg.History.StateDir != "" {
		s.diskStore, err = tracker.NewDiskStore(cfg.History.StateDir, cfg.History.MaxSessions, s.logger.Logger)
		if err != nil {
			return fmt.Errorf("failed to open session history: %w", err)
		}
		store = s.diskStore
	}

	trackerOpts := []tracker.Option{
		tracker.WithStateStore(store),
		tracker.WithMetrics(sessionMetrics),
		tracker.WithLogCollector(logging.NewLogCollector(cfg.Logging.MaxSessionLogs)),
	}

	if s.busConn == nil && cfg.NATS.URL != "" {
		s.natsConn, err = bus.Connect(cfg.NATS.URL, cfg.NATS.ClientName, s.logger.Logger)
		if err != nil {
			return err
		}
		s.busConn = s.natsConn
	}
	if s.busConn != nil {
		s.bridge = bus.NewBridge(s.busConn, bus.Subjects{
			Detections: cfg.NATS.DetectionsSubject,
			Status:     cfg.NATS.StatusSubject,
			QueueGroup: cfg.NATS.QueueGroup,
		}, s.logger.Logger)
		trackerOpts = append(trackerOpts, tracker.WithPublisher(s.bridge))
		s.props.Bus = cfg.NATS.StatusSubject
	}

	s.tracker = tracker.New(s.logger.Logger, s, trackerOpts...)

	if cfg.Cron != "" {
		s.cronManager, err = cron.NewCronTriggerManager(cfg.Cron, s, s.logger.Logger, availableActions)
		if err != nil {
			return fmt.Errorf("creating cron triggers: %w", err)
		}
	}
	return nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger.Logger
}

// Reload reads the config from disk and swaps it in. The log level applies
// immediately, task settings from the next session.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	if err := s.logger.SetLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to apply log level: %w", err)
	}

	old := s.deps.Swap(&serverDeps{config: cfg})
	if old != nil && (old.config.Listener != cfg.Listener || old.config.NATS != cfg.NATS || old.config.History != cfg.History) {
		s.logger.Warn("listener, bus and history changes take effect after a restart")
	}

	s.logger.Info("configuration loaded", "config_path", s.configPath)
	return nil
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.deps.Load().config
}

// NextRun returns the next scheduled cron action, or nil if none is configured.
func (s *Server) NextRun() *time.Time {
	if s.cronManager == nil {
		return nil
	}
	next := s.cronManager.NextRun()
	if next.IsZero() {
		return nil
	}
	return &next
}

// Status returns the live session status.
func (s *Server) Status() (messages.TaskStatus, tracker.SessionSummary, error) {
	return s.tracker.Status()
}

// Run executes cron actions in order.
func (s *Server) Run(actions []string) error {
	ctx := context.Background()
	var errs []error
	for _, action := range actions {
		switch action {
		case ActionRefresh:
			errs = append(errs, s.tracker.Refresh(ctx))
		case ActionReset:
			_, err := s.tracker.Reset(ctx, ReasonScheduled)
			errs = append(errs, err)
		default:
			errs = append(errs, fmt.Errorf("unknown action %q", action))
		}
	}
	return errors.Join(errs...)
}

// Serve starts the session and the HTTP server and blocks until the context
// is cancelled. It performs a graceful shutdown when the context is done.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return err
	}
	defer s.stop()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"config_path", s.configPath,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// start creates the first session and starts the background components.
func (s *Server) start(ctx context.Context) error {
	if err := s.tracker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	if s.bridge != nil {
		if err := s.bridge.Start(ctx, s.tracker); err != nil {
			s.tracker.Close()
			return err
		}
	}
	if s.cronManager != nil {
		s.logger.Info("starting cron triggers", "next_run", s.cronManager.NextRun())
		s.cronManager.Start(ctx)
	}
	if s.watchConfig {
		watcher, err := NewConfigWatcher(s.configPath, s.Reload, s.logger.Logger)
		if err != nil {
			s.logger.Warn("config watch disabled", "error", err)
		} else {
			go watcher.Run(ctx)
		}
	}
	return nil
}

// stop archives the live session and releases the bus.
func (s *Server) stop() {
	if s.bridge != nil {
		if err := s.bridge.Stop(); err != nil {
			s.logger.Warn("failed to unsubscribe from bus", "error", err)
		}
	}
	s.tracker.Close()
	if s.natsConn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.natsConn.Close(ctx); err != nil {
			s.logger.Warn("failed to close NATS connection", "error", err)
		}
	}
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("GET /health", handlers.NewHealthHandler(s.tracker))
	mux.Handle("GET /api/info", handlers.NewInfoHandler(s.props))
	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s.logger.Logger, s))
	mux.Handle("GET /api/task", handlers.NewTaskHandler(s.tracker))
	mux.Handle("GET /config", handlers.NewConfigHandler(s))
	mux.Handle("POST /reload", handlers.NewReloadHandler(s.logger.Logger, s))
	mux.Handle("POST /reset", handlers.NewResetHandler(s.logger.Logger, s.tracker))
	mux.Handle("POST /observe", handlers.NewObserveHandler(s.logger.Logger, s.tracker))
	mux.Handle("GET /history", handlers.NewHistoryHandler(s.tracker))
	mux.Handle("GET /history/logs", handlers.NewHistoryLogsHandler(s.tracker))
	if s.diskStore != nil {
		mux.Handle("POST /history/reload", handlers.NewStoreReloadHandler(s.logger.Logger, s.diskStore))
	}
	mux.Handle("GET /metrics", s.registry.Handler())
}
