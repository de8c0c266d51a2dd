package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/engine"
	"github.com/scrypster/reverie/internal/storage"
)

// genericFailure is what callers see for any collaborator failure. The
// cause stays in the logs.
const genericFailure = "Failed to process request"

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes {success:false, error:message}.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// respondFailure maps err onto a status code. Validation problems are shown
// to the caller verbatim; everything else is logged and reported generically.
func respondFailure(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, message := classify(log, err)
	respondError(w, status, message)
}

func classify(log zerolog.Logger, err error) (int, string) {
	if errors.Is(err, engine.ErrValidation) || errors.Is(err, storage.ErrInvalidInput) {
		return http.StatusBadRequest, err.Error()
	}
	log.Error().Stack().Err(err).Str("stage", string(engine.StageOf(err))).Msg("request failed")
	return http.StatusInternalServerError, genericFailure
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// NotFound answers unknown routes in the API's error format.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
