package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
)

// ReloadableStore is a store that can be manually reloaded.
type ReloadableStore interface {
	Reload() error
}

// StoreReloadHandler re-reads archived sessions from disk, picking up files
// copied into the state directory by hand.
type StoreReloadHandler struct {
	logger *slog.Logger
	store  ReloadableStore
}

// NewStoreReloadHandler creates a new StoreReloadHandler.
func NewStoreReloadHandler(logger *slog.Logger, store ReloadableStore) *StoreReloadHandler {
	return &StoreReloadHandler{
		logger: logger,
		store:  store,
	}
}

// ServeHTTP implements http.Handler.
func (h *StoreReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading session history")

	if err := h.store.Reload(); err != nil {
		h.logger.Error("failed to reload session history", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to reload session history: %w", err))
		return
	}

	h.logger.Info("session history reloaded")
	w.WriteHeader(http.StatusNoContent)
}
