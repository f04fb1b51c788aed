// Package handler contains the HTTP handlers for the scanner control API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ekaraca/marketscan/internal/domain"
)

// Control is the scanner surface the handlers drive. Query methods return
// snapshots; mutations are queued and applied at the next tick boundary.
type Control interface {
	ActiveMode() domain.ModeProfile
	Universe() []string
	Pending() []domain.CompositeSignal
	Stats() []domain.StrategyStats
	SetMode(name string) error
	ResetWeights()
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
