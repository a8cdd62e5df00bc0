package handlers

import (
	"net/http"

	"github.com/nomis52/taskmonitor/server/types"
)

// InfoHandler serves static properties of the running server.
type InfoHandler struct {
	props types.ServerProperties
}

// NewInfoHandler creates a new InfoHandler.
func NewInfoHandler(props types.ServerProperties) *InfoHandler {
	return &InfoHandler{props: props}
}

// ServeHTTP implements http.Handler.
func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.props)
}
