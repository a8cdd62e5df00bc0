package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nomis52/taskmonitor/messages"
	"github.com/nomis52/taskmonitor/server/tracker"
)

// NextRunResponse describes the next scheduled heartbeat.
type NextRunResponse struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// APIStatusResponse is the consolidated response for /api/status.
type APIStatusResponse struct {
	Session tracker.SessionSummary `json:"session"`
	Status  messages.TaskStatus    `json:"status"`
	NextRun NextRunResponse        `json:"next_run"`
}

// APIStatusHandler handles requests for the consolidated status endpoint.
type APIStatusHandler struct {
	logger   *slog.Logger
	provider StatusProvider
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(logger *slog.Logger, provider StatusProvider) *APIStatusHandler {
	return &APIStatusHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, summary, err := h.provider.Status()
	if err != nil {
		h.logger.Warn("status unavailable", "error", err)
		writeError(w, trackerStatusCode(err), err)
		return
	}

	nextRun := h.provider.NextRun()
	writeJSON(w, http.StatusOK, APIStatusResponse{
		Session: summary,
		Status:  status,
		NextRun: NextRunResponse{
			Scheduled: nextRun != nil,
			NextRun:   nextRun,
		},
	})
}
