package server

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "a: 1\n")

	var reloads atomic.Int32
	w, err := NewConfigWatcher(path, func() error {
		reloads.Add(1)
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	w.settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Other files in the directory are ignored.
	writeConfig(t, filepath.Join(dir, "other.yaml"), "b: 2\n")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), reloads.Load())

	writeConfig(t, path, "a: 2\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		return reloads.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
