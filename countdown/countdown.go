// Package countdown runs second-granularity countdowns on a background goroutine.
//
// A Timer counts down from a number of seconds, calling an OnTick callback once
// per interval with the remaining count (seconds-1, seconds-2, ..., 0) and then
// calling OnExpire exactly once:
//
//	t := countdown.New(countdown.WithLogger(logger))
//	err := t.Start(20, func(remaining int) {
//		fmt.Println(remaining, "seconds left")
//	}, func() {
//		fmt.Println("done")
//	})
//
// Only one countdown may run on a Timer at a time; Start returns
// ErrAlreadyRunning otherwise. Cancel stops a running countdown without
// calling OnExpire.
//
// Callbacks run on the timer goroutine. They may block; the next tick is not
// delivered until the previous callback has returned.
package countdown

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the time between ticks.
const DefaultInterval = time.Second

// ErrAlreadyRunning is returned by Start while a countdown is in progress.
var ErrAlreadyRunning = errors.New("countdown already running")

// State is the lifecycle state of a Timer.
type State int

const (
	// Idle means no countdown has run yet or the last one expired.
	Idle State = iota
	// Running means a countdown is in progress.
	Running
	// Cancelled means the last countdown was stopped before expiring.
	Cancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Timer runs at most one countdown at a time.
type Timer struct {
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	stop  chan struct{} // closed by Cancel, protected by mu
	done  chan struct{} // closed when the worker exits, protected by mu
}

// Option configures a Timer.
type Option func(*Timer)

// WithInterval sets the time between ticks.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Timer) {
		t.logger = logger.With("component", "countdown")
	}
}

// New creates an idle Timer.
func New(opts ...Option) *Timer {
	t := &Timer{
		interval: DefaultInterval,
		logger:   slog.Default().With("component", "countdown"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a countdown from seconds. It returns immediately; the
// callbacks are invoked from a separate goroutine.
func (t *Timer) Start(seconds int, onTick func(remaining int), onExpire func()) error {
	if seconds <= 0 {
		return fmt.Errorf("countdown length must be positive, got %d", seconds)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Running {
		return ErrAlreadyRunning
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.state = Running
	t.stop = stop
	t.done = done

	t.logger.Debug("countdown started", "seconds", seconds, "interval", t.interval)
	go t.run(seconds, stop, done, onTick, onExpire)
	return nil
}

// Cancel stops a running countdown. OnExpire will not be called and no
// further ticks are delivered once Cancel returns, except for a tick callback
// that was already executing. Cancel is a no-op if no countdown is running.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Running {
		return
	}
	t.state = Cancelled
	close(t.stop)
	t.logger.Debug("countdown cancelled")
}

// State returns the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until the most recently started countdown goroutine exits.
// It must not be called from inside a callback.
func (t *Timer) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (t *Timer) run(seconds int, stop <-chan struct{}, done chan<- struct{}, onTick func(int), onExpire func()) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for remaining := seconds - 1; remaining >= 0; remaining-- {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// Cancel may have raced with the tick.
		select {
		case <-stop:
			return
		default:
		}

		if onTick != nil {
			onTick(remaining)
		}
	}

	t.mu.Lock()
	if t.stop != stop || t.state != Running {
		t.mu.Unlock()
		return
	}
	t.state = Idle
	t.mu.Unlock()

	t.logger.Debug("countdown expired", "seconds", seconds)
	if onExpire != nil {
		onExpire()
	}
}
