package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/taskmonitor/messages"
)

// ObserveHandler injects an activity observation, as if it arrived on the bus.
type ObserveHandler struct {
	logger   *slog.Logger
	observer Observer
}

// NewObserveHandler creates a new ObserveHandler.
func NewObserveHandler(logger *slog.Logger, observer Observer) *ObserveHandler {
	return &ObserveHandler{
		logger:   logger,
		observer: observer,
	}
}

// ServeHTTP implements http.Handler.
func (h *ObserveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var obs messages.ActivityObservation
	if err := readJSON(r, &obs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if obs.LabelCandidates == nil {
		writeError(w, http.StatusBadRequest, errors.New("label_vec is required"))
		return
	}

	if err := h.observer.Observe(r.Context(), obs); err != nil {
		h.logger.Error("failed to handle observation", "error", err)
		writeError(w, trackerStatusCode(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
