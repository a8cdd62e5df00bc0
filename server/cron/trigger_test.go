package cron

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockRunnable is a test implementation of Runnable.
type mockRunnable struct {
	mu       sync.Mutex
	runCount atomic.Int32
	runErr   error
	actions  []string
}

func (m *mockRunnable) Run(actions []string) error {
	m.mu.Lock()
	m.actions = actions
	m.mu.Unlock()
	m.runCount.Add(1)
	return m.runErr
}

func (m *mockRunnable) lastActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actions
}

func TestNewCronTrigger(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "daily at 2am", spec: "0 2 * * *"},
		{name: "every minute", spec: "* * * * *"},
		{name: "with seconds", spec: "*/5 * * * * *"},
		{name: "every descriptor", spec: "@every 30s"},
		{name: "hourly descriptor", spec: "@hourly"},
		{name: "empty", spec: "", wantErr: true},
		{name: "wrong format", spec: "not a cron spec", wantErr: true},
		{name: "too few fields", spec: "0 2 *", wantErr: true},
		{name: "invalid value", spec: "60 2 * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewCronTrigger(tt.spec, func() error { return nil }, testLogger())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCronSpec)
				assert.Nil(t, trigger)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spec, trigger.spec)
		})
	}
}

func TestCronTrigger_NextRun(t *testing.T) {
	trigger, err := NewCronTrigger("0 2 * * *", func() error { return nil }, testLogger())
	require.NoError(t, err)

	nextRun := trigger.NextRun()
	assert.True(t, nextRun.After(time.Now()), "next run should be in the future")
	assert.Equal(t, 2, nextRun.Hour())
	assert.Equal(t, 0, nextRun.Minute())
}

func TestCronTrigger_Runs(t *testing.T) {
	var count atomic.Int32
	trigger, err := NewCronTrigger("@every 1s", func() error {
		count.Add(1)
		return errors.New("failures are logged, not fatal")
	}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trigger.Start(ctx)

	require.Eventually(t, func() bool {
		return count.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCronTrigger_CancellationStopsLoop(t *testing.T) {
	var count atomic.Int32
	trigger, err := NewCronTrigger("* * * * *", func() error {
		count.Add(1)
		return nil
	}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	// Cancelled before the first scheduled run.
	assert.Equal(t, int32(0), count.Load())
}
