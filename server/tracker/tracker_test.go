package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nomis52/taskmonitor/config"
	"github.com/nomis52/taskmonitor/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConfig struct {
	cfg *config.Config
}

func (s staticConfig) Config() *config.Config {
	return s.cfg
}

// switchableConfig lets a test change the configuration between sessions.
type switchableConfig struct {
	mu  sync.Mutex
	cfg *config.Config
}

func (s *switchableConfig) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *switchableConfig) set(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

type publisher struct {
	mu       sync.Mutex
	statuses []messages.TaskStatus
}

func (p *publisher) Publish(_ context.Context, status messages.TaskStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

func (p *publisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statuses)
}

func newTracker(t *testing.T, opts ...Option) (*Tracker, *publisher) {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Task.TickInterval = 5 * time.Millisecond

	pub := &publisher{}
	opts = append([]Option{WithPublisher(pub)}, opts...)
	tr := New(testLogger(), staticConfig{cfg: cfg}, opts...)
	t.Cleanup(tr.Close)
	return tr, pub
}

func observe(labels ...string) messages.ActivityObservation {
	return messages.ActivityObservation{LabelCandidates: labels}
}

func TestTracker_NotStarted(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	assert.ErrorIs(t, tr.Observe(ctx, observe("opening bottle")), ErrNotStarted)
	assert.ErrorIs(t, tr.Refresh(ctx), ErrNotStarted)
	_, _, err := tr.Status()
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = tr.Reset(ctx, "")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestTracker_StartAndObserve(t *testing.T) {
	tr, pub := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Start(ctx))
	assert.ErrorIs(t, tr.Start(ctx), ErrAlreadyStarted)
	assert.Equal(t, 1, pub.count())

	require.NoError(t, tr.Observe(ctx, observe("opening bottle")))
	status, summary, err := tr.Status()
	require.NoError(t, err)
	assert.Equal(t, "place tea bag into cup", status.CurrentStep)
	assert.Equal(t, summary.ID, status.SessionID)
	assert.Equal(t, SessionStateActive, summary.State)
	assert.Equal(t, 1, summary.Observations)
	assert.Equal(t, "Making Tea", summary.Task)

	def, err := tr.Definition()
	require.NoError(t, err)
	assert.Equal(t, "Making Tea", def.Name())

	// Live logs are captured for the session.
	logs, err := tr.Logs(summary.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)

	_, err = tr.Logs("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTracker_Reset(t *testing.T) {
	tr, _ := newTracker(t, WithStateStore(NewMemoryStore(10)))
	ctx := context.Background()

	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.Observe(ctx, observe("opening bottle")))
	_, before, err := tr.Status()
	require.NoError(t, err)

	archived, err := tr.Reset(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, before.ID, archived.ID)
	assert.Equal(t, SessionStateArchived, archived.State)
	assert.Equal(t, ReasonReset, archived.Reason)
	assert.Equal(t, "place tea bag into cup", archived.FinalStep)
	require.NotNil(t, archived.EndedAt)

	status, after, err := tr.Status()
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Equal(t, "open bottle and pour water into cup", status.CurrentStep)
	assert.Equal(t, 0, after.Observations)

	history := tr.History()
	require.Len(t, history, 1)
	assert.Equal(t, before.ID, history[0].ID)
	logs, err := tr.Logs(before.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestTracker_ResetCancelsCountdown(t *testing.T) {
	tr, pub := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.Observe(ctx, observe("opening bottle")))
	require.NoError(t, tr.Observe(ctx, observe("making tea")))

	archived, err := tr.Reset(ctx, "operator")
	require.NoError(t, err)
	assert.Equal(t, "steep for 20 seconds", archived.FinalStep)
	assert.Equal(t, "operator", archived.Reason)

	published := pub.count()
	time.Sleep(50 * time.Millisecond)
	// The old countdown is gone and the new session is idle.
	assert.Equal(t, published, pub.count())
}

func TestTracker_Close(t *testing.T) {
	store := NewMemoryStore(10)
	tr, _ := newTracker(t, WithStateStore(store))
	ctx := context.Background()

	require.NoError(t, tr.Start(ctx))
	tr.Close()
	tr.Close()

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, ReasonShutdown, history[0].Reason)

	assert.ErrorIs(t, tr.Observe(ctx, observe("opening bottle")), ErrClosed)
	assert.ErrorIs(t, tr.Start(ctx), ErrClosed)
}

func TestTracker_BadConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Task.Name = "juggling"

	tr := New(testLogger(), staticConfig{cfg: cfg})
	assert.Error(t, tr.Start(context.Background()))

	tr = New(testLogger(), staticConfig{})
	assert.Error(t, tr.Start(context.Background()))
}

func TestTracker_ResetWithBadConfig(t *testing.T) {
	good := &config.Config{}
	good.SetDefaults()
	good.Task.TickInterval = 5 * time.Millisecond
	provider := &switchableConfig{cfg: good}

	store := NewMemoryStore(10)
	tr := New(testLogger(), provider, WithStateStore(store))
	t.Cleanup(tr.Close)
	ctx := context.Background()

	require.NoError(t, tr.Start(ctx))
	_, before, err := tr.Status()
	require.NoError(t, err)

	bad := &config.Config{}
	bad.SetDefaults()
	bad.Task.Name = "juggling"
	provider.set(bad)

	archived, err := tr.Reset(ctx, "")
	require.Error(t, err)
	assert.Equal(t, before.ID, archived.ID)
	require.Len(t, store.History(), 1)

	// The archived session is not left behind as the live one.
	assert.ErrorIs(t, tr.Observe(ctx, observe("opening bottle")), ErrNotStarted)
	_, _, err = tr.Status()
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = tr.Reset(ctx, "")
	assert.ErrorIs(t, err, ErrNotStarted)

	provider.set(good)
	require.NoError(t, tr.Start(ctx))
	_, after, err := tr.Status()
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
}
