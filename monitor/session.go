// Package monitor tracks a single run of a task.
//
// A Session is fed activity observations and publishes a TaskStatus after
// every change. Timed steps run a countdown that publishes once per tick and
// advances the task to the next step in sequence when it expires.
//
// Observations and countdown callbacks are serialised by one mutex that is
// held across the state change and the publish, so statuses leave the session
// in the order the changes were applied.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nomis52/taskmonitor/countdown"
	"github.com/nomis52/taskmonitor/fsm"
	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/task"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Publisher receives every status the session produces.
type Publisher interface {
	Publish(ctx context.Context, status messages.TaskStatus) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, status messages.TaskStatus) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, status messages.TaskStatus) error {
	return f(ctx, status)
}

// Session is the single writer of a task run's state.
type Session struct {
	id        string
	def       *task.Definition
	logger    *slog.Logger
	publisher Publisher
	metrics   *Metrics
	now       func() time.Time
	interval  time.Duration

	// ctx is used to publish from countdown callbacks. It is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	engine          *fsm.Engine
	timer           *countdown.Timer
	currentActivity string
	nextTrigger     string
	timerActive     bool
	timerRemaining  int
	// generation is bumped whenever the running countdown is abandoned, so
	// late callbacks from it are dropped.
	generation uint64
	degraded   bool
	closed     bool
	startedAt  time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithPublisher sets where statuses are sent.
func WithPublisher(p Publisher) Option {
	return func(s *Session) {
		s.publisher = p
	}
}

// WithMetrics sets the metrics the session updates.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithTickInterval sets the countdown tick interval. Defaults to one second.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		s.interval = d
	}
}

// WithClock sets the clock used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithID sets the session ID. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New creates a session positioned at the first step of def.
func New(def *task.Definition, opts ...Option) (*Session, error) {
	if def == nil {
		return nil, errors.New("task definition is required")
	}

	s := &Session{
		id:       uuid.NewString(),
		def:      def,
		logger:   slog.Default(),
		metrics:  nopMetrics(),
		now:      time.Now,
		interval: countdown.DefaultInterval,
		engine:   fsm.New(def),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		return nil, errors.New("session ID must not be empty")
	}

	base := s.logger.With("task", def.Name())
	s.logger = base.With("component", "monitor")
	s.timer = countdown.New(
		countdown.WithInterval(s.interval),
		countdown.WithLogger(base),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.startedAt = s.now()
	s.refreshNextTriggerLocked()
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Definition returns the task the session runs.
func (s *Session) Definition() *task.Definition {
	return s.def
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Start publishes the initial status.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.logger.Info("session started", "step", s.engine.CurrentStep())
	s.publishLocked(ctx)
	return nil
}

// Refresh republishes the current status without changing it.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.publishLocked(ctx)
	return nil
}

// OnActivityObserved handles one classifier result. Candidates are ordered
// highest confidence first; the first one in the task vocabulary is used.
func (s *Session) OnActivityObserved(ctx context.Context, candidates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	activity, trigger, matched := s.match(candidates)
	if !matched {
		if len(candidates) == 0 {
			s.logger.Warn("observation with no label candidates")
			s.metrics.observation(resultEmpty)
		} else {
			s.currentActivity = candidates[0]
			s.logger.Debug("activity not in task vocabulary", "activity", candidates[0])
			s.metrics.observation(resultUnmatched)
		}
		s.publishLocked(ctx)
		return nil
	}

	s.currentActivity = activity
	if s.timerActive {
		s.logger.Debug("activity observed during countdown", "activity", activity, "remaining", s.timerRemaining)
		s.metrics.observation(resultDeferred)
		return nil
	}
	s.metrics.observation(resultMatched)

	change, err := s.engine.ApplyTrigger(trigger)
	switch {
	case errors.Is(err, fsm.ErrNoSuchTransition):
		s.logger.Debug("trigger does not apply to current step", "activity", activity, "trigger", trigger, "step", s.engine.CurrentStep())
		s.metrics.transition(kindRejected)
	case err != nil:
		return fmt.Errorf("apply trigger %q: %w", trigger, err)
	default:
		s.logger.Info("step changed", "from", change.From, "to", change.To, "trigger", change.Trigger)
		s.metrics.transition(kindTrigger)
	}

	s.refreshNextTriggerLocked()
	s.publishLocked(ctx)
	s.startTimerLocked()
	return nil
}

// Snapshot returns the current status.
func (s *Session) Snapshot() messages.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops a running countdown and waits for its worker to exit. Further
// calls return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.timerActive = false
	s.timer.Cancel()
	step := s.engine.CurrentStep()
	s.mu.Unlock()

	s.cancel()
	// A callback may be blocked on s.mu, so wait without holding it.
	s.timer.Wait()
	s.metrics.timerActive.Set(0)
	s.logger.Info("session closed", "step", step)
}

func (s *Session) match(candidates []string) (activity, trigger string, ok bool) {
	for _, c := range candidates {
		if t, found := s.def.TriggerFor(c); found {
			return c, t, true
		}
	}
	return "", "", false
}

// startTimerLocked starts a countdown if the current step is timed and none
// is running.
func (s *Session) startTimerLocked() {
	if s.timerActive || s.degraded {
		return
	}
	step, ok := s.def.Step(s.engine.CurrentStep())
	if !ok || !step.Timed() {
		return
	}

	gen := s.generation
	err := s.timer.Start(step.DurationSeconds,
		func(remaining int) { s.onTick(gen, remaining) },
		func() { s.onExpire(gen) },
	)
	if err != nil {
		// The timerActive guard makes this unreachable.
		s.logger.Error("failed to start countdown", "step", step.Name, "error", err)
		return
	}
	s.timerActive = true
	s.timerRemaining = step.DurationSeconds
	s.metrics.timerActive.Set(1)
	s.logger.Info("countdown started", "step", step.Name, "seconds", step.DurationSeconds)
}

func (s *Session) onTick(gen uint64, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.closed {
		return
	}
	s.timerRemaining = remaining
	s.publishLocked(s.ctx)
}

func (s *Session) onExpire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.closed {
		return
	}
	s.generation++
	s.timerActive = false
	s.metrics.timerActive.Set(0)

	change, err := s.engine.AdvanceToNextInSequence()
	if err != nil {
		s.degraded = true
		s.metrics.degraded.Set(1)
		s.logger.Error("countdown expired with no step to advance to, auto-advance halted",
			"step", s.engine.CurrentStep(), "error", err)
		s.publishLocked(s.ctx)
		return
	}

	s.logger.Info("step changed", "from", change.From, "to", change.To, "reason", "countdown expired")
	s.metrics.transition(kindSequence)
	s.refreshNextTriggerLocked()
	s.publishLocked(s.ctx)
}

func (s *Session) refreshNextTriggerLocked() {
	if trigger, ok := s.engine.PeekNextExpectedTrigger(); ok {
		s.nextTrigger = trigger
	}
}

func (s *Session) snapshotLocked() messages.TaskStatus {
	items := make([]messages.TaskItem, 0, len(s.def.Items()))
	for _, item := range s.def.Items() {
		items = append(items, messages.TaskItem{ItemName: item.Name, Quantity: item.Quantity})
	}
	steps := make([]string, 0, len(s.def.Steps()))
	for _, step := range s.def.Steps() {
		steps = append(steps, task.HumanReadable(step.Name))
	}

	previous := messages.NotAvailable
	if p, ok := s.engine.PreviousStep(); ok {
		previous = p
	}
	activity := messages.NotAvailable
	if s.currentActivity != "" {
		activity = s.currentActivity
	}

	return messages.TaskStatus{
		SessionID:             s.id,
		TaskName:              s.def.Name(),
		TaskDescription:       s.def.Description(),
		Items:                 items,
		Steps:                 steps,
		CurrentStep:           task.HumanReadable(s.engine.CurrentStep()),
		PreviousStep:          previous,
		CurrentActivity:       activity,
		NextExpectedTrigger:   s.nextTrigger,
		TimerRemainingSeconds: s.remainingLocked(),
		TimerActive:           s.timerActive,
		Degraded:              s.degraded,
		Timestamp:             s.now(),
	}
}

// remainingLocked is the running count while a countdown is active, the
// declared duration for a timed step whose countdown is not running, and
// NoTimer otherwise.
func (s *Session) remainingLocked() int {
	if s.timerActive {
		return s.timerRemaining
	}
	step, ok := s.def.Step(s.engine.CurrentStep())
	if !ok || !step.Timed() {
		return messages.NoTimer
	}
	return step.DurationSeconds
}

func (s *Session) publishLocked(ctx context.Context) {
	status := s.snapshotLocked()

	s.metrics.timerRemaining.Set(float64(status.TimerRemainingSeconds))
	s.metrics.stepIndex.Set(float64(s.def.StepIndex(s.engine.CurrentStep())))
	s.metrics.degraded.Set(boolGauge(s.degraded))

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, status); err != nil {
		s.metrics.publishErrors.Inc()
		s.logger.Warn("failed to publish status", "step", status.CurrentStep, "error", err)
		return
	}
	s.metrics.published.Inc()
}
