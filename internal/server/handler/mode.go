package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ekaraca/marketscan/internal/domain"
)

// ModeHandler serves and switches the active risk mode.
type ModeHandler struct {
	control Control
	logger  *slog.Logger
}

// NewModeHandler creates a ModeHandler.
func NewModeHandler(control Control, logger *slog.Logger) *ModeHandler {
	return &ModeHandler{control: control, logger: logger}
}

// Get returns the active mode profile.
// GET /api/mode
func (h *ModeHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.control.ActiveMode())
}

// Set queues a mode switch, applied at the next tick boundary.
// POST /api/mode
func (h *ModeHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := domain.ValidateModeName(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.control.SetMode(req.Mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.InfoContext(r.Context(), "mode switch requested", slog.String("mode", req.Mode))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "mode switch queued", "mode": req.Mode})
}
