package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/engine"
)

// MaintenanceHandler serves the health check and embedding backfill.
type MaintenanceHandler struct {
	journal JournalService
	log     zerolog.Logger
}

// NewMaintenanceHandler creates a new MaintenanceHandler.
func NewMaintenanceHandler(journal JournalService, log zerolog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{journal: journal, log: log.With().Str("handler", "maintenance").Logger()}
}

// Health handles GET /api/health. It answers 503 when the store or the
// embedding service is unreachable.
func (h *MaintenanceHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.journal.Health(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, HealthResponse{Success: report.Healthy(), HealthReport: report})
}

// Backfill handles POST /api/backfill?limit=N. The limit is clamped to
// 1..engine.MaxBackfillLimit and defaults to engine.DefaultBackfillLimit.
func (h *MaintenanceHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), engine.DefaultBackfillLimit)
	limit = max(1, min(engine.MaxBackfillLimit, limit))

	result, err := h.journal.Backfill(r.Context(), limit)
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, BackfillResponse{Success: true, BackfillResult: result})
}
