package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nomis52/taskmonitor/logging"
	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/server/tracker"
	"github.com/nomis52/taskmonitor/server/types"
	"github.com/nomis52/taskmonitor/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTracker implements every tracker-backed provider.
type mockTracker struct {
	status   messages.TaskStatus
	summary  tracker.SessionSummary
	err      error
	nextRun  *time.Time
	observed []messages.ActivityObservation
	reason   string
	history  []tracker.SessionSummary
	logs     map[string][]logging.LogEntry
}

func (m *mockTracker) Status() (messages.TaskStatus, tracker.SessionSummary, error) {
	return m.status, m.summary, m.err
}

func (m *mockTracker) NextRun() *time.Time {
	return m.nextRun
}

func (m *mockTracker) Definition() (*task.Definition, error) {
	if m.err != nil {
		return nil, m.err
	}
	return task.Lookup(task.MakingTeaName)
}

func (m *mockTracker) Observe(_ context.Context, obs messages.ActivityObservation) error {
	m.observed = append(m.observed, obs)
	return m.err
}

func (m *mockTracker) Reset(_ context.Context, reason string) (tracker.SessionSummary, error) {
	m.reason = reason
	return m.summary, m.err
}

func (m *mockTracker) History() []tracker.SessionSummary {
	return m.history
}

func (m *mockTracker) Logs(id string) ([]logging.LogEntry, error) {
	logs, ok := m.logs[id]
	if !ok {
		return nil, tracker.ErrSessionNotFound
	}
	return logs, nil
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPIStatusHandler(t *testing.T) {
	next := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &mockTracker{
		status:  messages.TaskStatus{SessionID: "abc", CurrentStep: "steep for 20 seconds", TimerRemainingSeconds: 12, TimerActive: true},
		summary: tracker.SessionSummary{ID: "abc", Task: "Making Tea", State: tracker.SessionStateActive},
		nextRun: &next,
	}

	w := serve(NewAPIStatusHandler(slog.Default(), m), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp APIStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "abc", resp.Session.ID)
	assert.Equal(t, tracker.SessionStateActive, resp.Session.State)
	assert.Equal(t, 12, resp.Status.TimerRemainingSeconds)
	assert.True(t, resp.NextRun.Scheduled)
	require.NotNil(t, resp.NextRun.NextRun)
	assert.True(t, next.Equal(*resp.NextRun.NextRun))
}

func TestAPIStatusHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not started", err: tracker.ErrNotStarted, want: http.StatusServiceUnavailable},
		{name: "closed", err: tracker.ErrClosed, want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(NewAPIStatusHandler(slog.Default(), &mockTracker{err: tt.err}), http.MethodGet, "/api/status", "")
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), tt.err.Error())
		})
	}
}

func TestTaskHandler(t *testing.T) {
	w := serve(NewTaskHandler(&mockTracker{}), http.MethodGet, "/api/task", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp TaskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Making Tea", resp.Name)
	require.NotEmpty(t, resp.Steps)
	assert.Equal(t, task.HumanReadable(resp.Steps[0].Name), resp.Steps[0].DisplayName)
	assert.NotEmpty(t, resp.Transitions)
	assert.Equal(t, "open_bottle", resp.Vocabulary["opening bottle"])

	w = serve(NewTaskHandler(&mockTracker{err: tracker.ErrNotStarted}), http.MethodGet, "/api/task", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestObserveHandler(t *testing.T) {
	m := &mockTracker{}
	h := NewObserveHandler(slog.Default(), m)

	w := serve(h, http.MethodPost, "/observe", `{"label_vec": ["opening bottle", "drinking"]}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, m.observed, 1)
	assert.Equal(t, []string{"opening bottle", "drinking"}, m.observed[0].LabelCandidates)

	// An explicitly empty candidate list is a valid observation.
	w = serve(h, http.MethodPost, "/observe", `{"label_vec": []}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, m.observed, 2)
}

func TestObserveHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "missing label_vec", body: `{}`},
		{name: "malformed", body: `{"label_vec": "opening bottle"`},
		{name: "unknown field", body: `{"labels": ["opening bottle"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockTracker{}
			w := serve(NewObserveHandler(slog.Default(), m), http.MethodPost, "/observe", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, m.observed)
		})
	}
}

func TestResetHandler(t *testing.T) {
	m := &mockTracker{summary: tracker.SessionSummary{ID: "abc", State: tracker.SessionStateArchived, Reason: "operator"}}
	h := NewResetHandler(slog.Default(), m)

	w := serve(h, http.MethodPost, "/reset", `{"reason": "operator"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operator", m.reason)

	var resp tracker.SessionSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "abc", resp.ID)
	assert.Equal(t, tracker.SessionStateArchived, resp.State)

	// The body is optional.
	w = serve(h, http.MethodPost, "/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", m.reason)

	w = serve(h, http.MethodPost, "/reset", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	m.err = tracker.ErrNotStarted
	w = serve(h, http.MethodPost, "/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHistoryHandlers(t *testing.T) {
	m := &mockTracker{
		history: []tracker.SessionSummary{
			{ID: "new", State: tracker.SessionStateArchived},
			{ID: "old", State: tracker.SessionStateArchived},
		},
		logs: map[string][]logging.LogEntry{
			"old": {{Level: "INFO", Message: "step changed"}},
		},
	}

	w := serve(NewHistoryHandler(m), http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []tracker.SessionSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&history))
	require.Len(t, history, 2)
	assert.Equal(t, "new", history[0].ID)

	logsHandler := NewHistoryLogsHandler(m)

	w = serve(logsHandler, http.MethodGet, "/history/logs?id=old", "")
	require.Equal(t, http.StatusOK, w.Code)
	var logs []logging.LogEntry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "step changed", logs[0].Message)

	w = serve(logsHandler, http.MethodGet, "/history/logs", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(logsHandler, http.MethodGet, "/history/logs?id=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type mockStore struct {
	err     error
	reloads int
}

func (m *mockStore) Reload() error {
	m.reloads++
	return m.err
}

func TestStoreReloadHandler(t *testing.T) {
	store := &mockStore{}
	w := serve(NewStoreReloadHandler(slog.Default(), store), http.MethodPost, "/history/reload", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, store.reloads)

	store.err = errors.New("permission denied")
	w = serve(NewStoreReloadHandler(slog.Default(), store), http.MethodPost, "/history/reload", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "permission denied")
}

func TestInfoHandler(t *testing.T) {
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	h := NewInfoHandler(types.ServerProperties{StartedAt: started, Hostname: "kitchen", Bus: "TaskUpdates"})

	w := serve(h, http.MethodGet, "/api/info", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.ServerProperties
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "kitchen", resp.Hostname)
	assert.Equal(t, "TaskUpdates", resp.Bus)
	assert.True(t, started.Equal(resp.StartedAt))
	assert.Equal(t, "", resp.Build.Version)
}
