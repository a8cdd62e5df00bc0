// Package tracker owns the live task session of the taskmonitor server.
//
// The tracker handles:
//   - Creating sessions for the configured task
//   - Routing activity observations to the live session
//   - Archiving a session when it is reset or the server shuts down
//   - Maintaining the history of archived sessions
//
// Each session is built from the current configuration, so config changes
// take effect on the next reset.
//
// # Example
//
//	t := tracker.New(logger, configProvider, tracker.WithPublisher(bus))
//	if err := t.Start(ctx); err != nil {
//	    return err
//	}
//	defer t.Close()
//
//	_ = t.Observe(ctx, messages.ActivityObservation{LabelCandidates: []string{"making tea"}})
//	status, summary, _ := t.Status()
//
//	// Start over, keeping the old session in the history
//	archived, _ := t.Reset(ctx, "user request")
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nomis52/taskmonitor/config"
	"github.com/nomis52/taskmonitor/logging"
	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/monitor"
	"github.com/nomis52/taskmonitor/task"
)

const (
	// ReasonReset marks sessions archived by Reset without an explicit reason.
	ReasonReset = "reset"
	// ReasonShutdown marks the session archived by Close.
	ReasonShutdown = "shutdown"
)

var (
	// ErrNotStarted is returned when no session has been started yet.
	ErrNotStarted = errors.New("tracker not started")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("tracker already started")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("tracker closed")
	// ErrSessionNotFound is returned for IDs that are neither live nor archived.
	ErrSessionNotFound = errors.New("session not found")
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Tracker manages the live session.
type Tracker struct {
	logger         *slog.Logger
	configProvider ConfigProvider
	store          StateStore
	collector      *logging.LogCollector
	metrics        *monitor.Metrics
	publisher      monitor.Publisher
	now            func() time.Time

	mu      sync.Mutex
	session *monitor.Session
	summary SessionSummary
	closed  bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStateStore configures where archived sessions are kept.
func WithStateStore(store StateStore) Option {
	return func(t *Tracker) {
		t.store = store
	}
}

// WithPublisher sets the publisher handed to every session.
func WithPublisher(p monitor.Publisher) Option {
	return func(t *Tracker) {
		t.publisher = p
	}
}

// WithMetrics sets the metrics shared by every session.
func WithMetrics(m *monitor.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithLogCollector sets the collector that captures per-session logs.
func WithLogCollector(c *logging.LogCollector) Option {
	return func(t *Tracker) {
		t.collector = c
	}
}

// New creates a new Tracker. Call Start to create the first session.
func New(logger *slog.Logger, provider ConfigProvider, opts ...Option) *Tracker {
	t := &Tracker{
		logger:         logger,
		configProvider: provider,
		store:          NewMemoryStore(0),
		collector:      logging.NewLogCollector(logging.DefaultMaxEntries),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start creates the first session and publishes its initial status.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.session != nil {
		return ErrAlreadyStarted
	}
	return t.startSessionLocked(ctx)
}

// Observe hands an activity observation to the live session.
func (t *Tracker) Observe(ctx context.Context, obs messages.ActivityObservation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLocked(); err != nil {
		return err
	}
	t.summary.Observations++
	return t.session.OnActivityObserved(ctx, obs.LabelCandidates)
}

// Refresh republishes the live session's status.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLocked(); err != nil {
		return err
	}
	return t.session.Refresh(ctx)
}

// Status returns the live session's status and summary.
func (t *Tracker) Status() (messages.TaskStatus, SessionSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLocked(); err != nil {
		return messages.TaskStatus{}, SessionSummary{}, err
	}
	status := t.session.Snapshot()
	summary := t.summary
	summary.FinalStep = status.CurrentStep
	summary.Degraded = status.Degraded
	return status, summary, nil
}

// Definition returns the task the live session runs.
func (t *Tracker) Definition() (*task.Definition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLocked(); err != nil {
		return nil, err
	}
	return t.session.Definition(), nil
}

// Reset archives the live session and starts a new one from the current
// configuration. It returns the summary of the archived session.
func (t *Tracker) Reset(ctx context.Context, reason string) (SessionSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLocked(); err != nil {
		return SessionSummary{}, err
	}
	if reason == "" {
		reason = ReasonReset
	}

	archived := t.archiveLocked(reason)
	if err := t.startSessionLocked(ctx); err != nil {
		t.session = nil
		return archived, fmt.Errorf("failed to start new session: %w", err)
	}
	return archived, nil
}

// History returns archived sessions, most recent first.
func (t *Tracker) History() []SessionSummary {
	return t.store.History()
}

// Logs returns the captured logs of the live or an archived session.
func (t *Tracker) Logs(id string) ([]logging.LogEntry, error) {
	t.mu.Lock()
	live := t.session != nil && t.summary.ID == id
	t.mu.Unlock()

	if live {
		return t.collector.GetLogs(id), nil
	}
	for _, s := range t.store.History() {
		if s.ID == id {
			return t.store.Logs(id), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Close archives the live session. The tracker can't be used afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	if t.session != nil {
		t.archiveLocked(ReasonShutdown)
		t.session = nil
	}
}

func (t *Tracker) checkLocked() error {
	if t.closed {
		return ErrClosed
	}
	if t.session == nil {
		return ErrNotStarted
	}
	return nil
}

func (t *Tracker) startSessionLocked(ctx context.Context) error {
	cfg := t.configProvider.Config()
	if cfg == nil {
		return errors.New("no configuration available")
	}
	def, err := cfg.Task.Definition()
	if err != nil {
		return fmt.Errorf("failed to build task: %w", err)
	}

	id := uuid.NewString()
	opts := []monitor.Option{
		monitor.WithID(id),
		monitor.WithLogger(logging.SessionLogger(t.logger, t.collector, id)),
		monitor.WithTickInterval(cfg.Task.TickInterval),
	}
	if t.publisher != nil {
		opts = append(opts, monitor.WithPublisher(t.publisher))
	}
	if t.metrics != nil {
		opts = append(opts, monitor.WithMetrics(t.metrics))
	}

	session, err := monitor.New(def, opts...)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	t.session = session
	t.summary = SessionSummary{
		ID:        id,
		Task:      def.Name(),
		State:     SessionStateActive,
		StartedAt: session.StartedAt(),
	}
	t.logger.Info("session created", "session_id", id, "task", def.Name())
	if err := session.Start(ctx); err != nil {
		session.Close()
		t.session = nil
		return err
	}
	return nil
}

// archiveLocked closes the live session and saves it to the store.
func (t *Tracker) archiveLocked(reason string) SessionSummary {
	t.session.Close()
	final := t.session.Snapshot()

	ended := t.now()
	summary := t.summary
	summary.State = SessionStateArchived
	summary.EndedAt = &ended
	summary.Reason = reason
	summary.FinalStep = final.CurrentStep
	summary.Degraded = final.Degraded

	record := SessionRecord{
		SessionSummary: summary,
		FinalStatus:    final,
		Logs:           t.collector.Take(summary.ID),
	}
	if err := t.store.Save(record); err != nil {
		t.logger.Error("failed to save session to store", "session_id", summary.ID, "error", err)
	}

	t.logger.Info("session archived",
		"session_id", summary.ID,
		"reason", reason,
		"final_step", summary.FinalStep,
		"duration", ended.Sub(summary.StartedAt),
	)
	return summary
}
