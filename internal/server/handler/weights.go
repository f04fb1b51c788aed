package handler

import (
	"log/slog"
	"net/http"

	"github.com/ekaraca/marketscan/internal/domain"
)

// WeightsHandler serves the adaptive weight statistics and the reset command.
type WeightsHandler struct {
	control Control
	history domain.HistoryStore // may be nil
	logger  *slog.Logger
}

// NewWeightsHandler creates a WeightsHandler. history may be nil; the record
// columns are then omitted.
func NewWeightsHandler(control Control, history domain.HistoryStore, logger *slog.Logger) *WeightsHandler {
	return &WeightsHandler{control: control, history: history, logger: logger}
}

type strategyRow struct {
	domain.StrategyStats
	Wins     *int `json:"wins,omitempty"`
	Losses   *int `json:"losses,omitempty"`
	Timeouts *int `json:"timeouts,omitempty"`
}

// Stats returns per-strategy weight, sample count and rolling accuracy,
// joined with the lifetime win/loss record when history is configured.
// GET /api/weights
func (h *WeightsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.control.Stats()
	rows := make([]strategyRow, 0, len(stats))
	for _, st := range stats {
		row := strategyRow{StrategyStats: st}
		if h.history != nil {
			wins, losses, timeouts, err := h.history.StrategyRecord(r.Context(), st.Strategy)
			if err != nil {
				h.logger.WarnContext(r.Context(), "strategy record lookup failed",
					slog.String("strategy", st.Strategy),
					slog.String("error", err.Error()),
				)
			} else {
				row.Wins, row.Losses, row.Timeouts = &wins, &losses, &timeouts
			}
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": rows,
	})
}

// Reset queues a weight-model reset, applied at the next tick boundary.
// POST /api/weights/reset
func (h *WeightsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.control.ResetWeights()
	h.logger.InfoContext(r.Context(), "weight reset requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset queued"})
}
