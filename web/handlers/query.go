// Package handlers provides the HTTP handlers and middleware for the Reverie API.
package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/engine"
)

// Asker answers one question with a streamed answer.
type Asker interface {
	Ask(ctx context.Context, req engine.Request) (*engine.Answer, error)
}

// QueryHandler serves POST /api/query.
type QueryHandler struct {
	asker Asker
	log   zerolog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(asker Asker, log zerolog.Logger) *QueryHandler {
	return &QueryHandler{asker: asker, log: log.With().Str("handler", "query").Logger()}
}

// ServeHTTP streams the answer as text/plain chunks.
//
// Errors found before the first byte is written are reported as JSON with a
// 400 or 500 status. Once streaming has begun the status is fixed at 200, so
// a failure ends the body with the interruption marker instead.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := h.asker.Ask(r.Context(), req.toEngine())
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Request-ID", answer.ID)
	w.WriteHeader(http.StatusOK)

	// Deliver logs the cause and appends the marker itself.
	_ = answer.Deliver(w)
}
