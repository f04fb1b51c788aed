package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// StatusHandler serves the health check and the scanner status summary.
type StatusHandler struct {
	control Control
	logger  *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(control Control, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{control: control, logger: logger}
}

// HealthCheck responds with a simple liveness payload.
// GET /api/health
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status summarizes the running scanner.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	mode := h.control.ActiveMode()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":          mode.Name,
		"threshold":     mode.Threshold,
		"cooldown":      mode.Cooldown.String(),
		"universe_size": len(h.control.Universe()),
		"pending":       len(h.control.Pending()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}
