package handlers

import (
	"log/slog"
	"net/http"
)

// ResetRequest is the optional body of POST /reset.
type ResetRequest struct {
	Reason string `json:"reason"`
}

// ResetHandler archives the live session and starts a fresh one.
type ResetHandler struct {
	logger   *slog.Logger
	resetter Resetter
}

// NewResetHandler creates a new ResetHandler.
func NewResetHandler(logger *slog.Logger, resetter Resetter) *ResetHandler {
	return &ResetHandler{
		logger:   logger,
		resetter: resetter,
	}
}

// ServeHTTP implements http.Handler. It responds with the archived session.
func (h *ResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	archived, err := h.resetter.Reset(r.Context(), req.Reason)
	if err != nil {
		h.logger.Error("failed to reset session", "error", err)
		writeError(w, trackerStatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, archived)
}
