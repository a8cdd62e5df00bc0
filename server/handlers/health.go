package handlers

import (
	"net/http"

	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/server/tracker"
)

// SessionChecker reports whether a session is live.
type SessionChecker interface {
	Status() (messages.TaskStatus, tracker.SessionSummary, error)
}

// HealthHandler reports "ok" while a session is live and "degraded" when the
// live session has stopped advancing. It returns 503 when no session is live.
type HealthHandler struct {
	checker SessionChecker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker SessionChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	status, _, err := h.checker.Status()
	if err != nil {
		w.WriteHeader(trackerStatusCode(err))
		w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	if status.Degraded {
		w.Write([]byte("degraded"))
		return
	}
	w.Write([]byte("ok"))
}
