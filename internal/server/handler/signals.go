package handler

import (
	"log/slog"
	"net/http"
	"sort"
)

// SignalHandler serves the pending-signal pool.
type SignalHandler struct {
	control Control
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(control Control, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{control: control, logger: logger}
}

// ListPending returns all pending composite signals, newest first.
// GET /api/signals/pending
func (h *SignalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending := h.control.Pending()
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(pending),
		"signals": pending,
	})
}
