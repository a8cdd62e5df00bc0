package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nomis52/taskmonitor/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileReloader reloads a config file from disk, keeping the last good config.
type fileReloader struct {
	path string
	cfg  *config.Config
}

func (f *fileReloader) Reload() error {
	cfg, err := config.LoadConfig(f.path)
	if err != nil {
		return err
	}
	f.cfg = cfg
	return nil
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReloadHandler_Success(t *testing.T) {
	path := writeConfigFile(t, "task:\n  name: making_tea\nlogging:\n  level: debug\n")
	reloader := &fileReloader{path: path}
	handler := NewReloadHandler(slog.Default(), reloader)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, reloader.cfg)
	assert.Equal(t, "debug", reloader.cfg.Logging.Level)
	assert.Equal(t, "making_tea", reloader.cfg.Task.Name)
}

func TestReloadHandler_UnknownTask(t *testing.T) {
	path := writeConfigFile(t, "task:\n  name: juggling\n")
	reloader := &fileReloader{path: path}
	handler := NewReloadHandler(slog.Default(), reloader)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "failed to reload configuration")
	assert.Contains(t, w.Body.String(), "juggling")
	assert.Nil(t, reloader.cfg)
}

func TestReloadHandler_MissingFile(t *testing.T) {
	reloader := &fileReloader{path: filepath.Join(t.TempDir(), "missing.yaml")}
	handler := NewReloadHandler(slog.Default(), reloader)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to open config file")
}
