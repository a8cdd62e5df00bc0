package countdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = time.Millisecond

// recorder collects callback invocations.
type recorder struct {
	mu      sync.Mutex
	ticks   []int
	expired atomic.Int32
}

func (r *recorder) onTick(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recorder) onExpire() {
	r.expired.Add(1)
}

func (r *recorder) Ticks() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unknown", State(42).String())

	data, err := Running.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"running"`, string(data))
}

func TestTimer_CountsDownAndExpires(t *testing.T) {
	timer := New(WithInterval(testInterval))
	rec := &recorder{}

	require.NoError(t, timer.Start(5, rec.onTick, rec.onExpire))
	timer.Wait()

	assert.Equal(t, []int{4, 3, 2, 1, 0}, rec.Ticks())
	assert.Equal(t, int32(1), rec.expired.Load())
	assert.Equal(t, Idle, timer.State())
}

func TestTimer_AlreadyRunning(t *testing.T) {
	timer := New(WithInterval(time.Hour))
	rec := &recorder{}

	require.NoError(t, timer.Start(3, rec.onTick, rec.onExpire))
	assert.Equal(t, Running, timer.State())

	err := timer.Start(3, rec.onTick, rec.onExpire)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	timer.Cancel()
	timer.Wait()
}

func TestTimer_Cancel(t *testing.T) {
	timer := New(WithInterval(time.Hour))
	rec := &recorder{}

	require.NoError(t, timer.Start(3, rec.onTick, rec.onExpire))
	timer.Cancel()
	timer.Wait()

	assert.Equal(t, Cancelled, timer.State())
	assert.Empty(t, rec.Ticks())
	assert.Equal(t, int32(0), rec.expired.Load())

	// Cancelling twice is harmless.
	timer.Cancel()
	assert.Equal(t, Cancelled, timer.State())
}

func TestTimer_CancelDuringTick(t *testing.T) {
	timer := New(WithInterval(testInterval))
	rec := &recorder{}

	onTick := func(remaining int) {
		rec.onTick(remaining)
		if remaining == 8 {
			// Called from the worker goroutine, so cancel must not block on it.
			timer.Cancel()
		}
	}

	require.NoError(t, timer.Start(10, onTick, rec.onExpire))
	timer.Wait()

	assert.Equal(t, []int{9, 8}, rec.Ticks())
	assert.Equal(t, int32(0), rec.expired.Load())
	assert.Equal(t, Cancelled, timer.State())
}

func TestTimer_RestartAfterExpiry(t *testing.T) {
	timer := New(WithInterval(testInterval))
	rec := &recorder{}

	require.NoError(t, timer.Start(1, rec.onTick, rec.onExpire))
	timer.Wait()
	require.NoError(t, timer.Start(2, rec.onTick, rec.onExpire))
	timer.Wait()

	assert.Equal(t, []int{0, 1, 0}, rec.Ticks())
	assert.Equal(t, int32(2), rec.expired.Load())
}

func TestTimer_RestartFromExpire(t *testing.T) {
	timer := New(WithInterval(testInterval))
	rec := &recorder{}
	restarted := make(chan error, 1)

	require.NoError(t, timer.Start(1, rec.onTick, func() {
		rec.onExpire()
		restarted <- timer.Start(1, rec.onTick, rec.onExpire)
	}))

	require.NoError(t, <-restarted)
	timer.Wait()

	assert.Equal(t, []int{0, 0}, rec.Ticks())
	assert.Equal(t, int32(2), rec.expired.Load())
}

func TestTimer_InvalidLength(t *testing.T) {
	timer := New()
	assert.Error(t, timer.Start(0, nil, nil))
	assert.Error(t, timer.Start(-3, nil, nil))
	assert.Equal(t, Idle, timer.State())
}

func TestTimer_WaitWithoutStart(t *testing.T) {
	timer := New()
	done := make(chan struct{})
	go func() {
		timer.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked without a running countdown")
	}
}
