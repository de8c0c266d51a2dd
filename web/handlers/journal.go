package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/engine"
	"github.com/scrypster/reverie/pkg/types"
)

// DefaultListWindow is how far back GET /api/journal looks when no start is given.
const DefaultListWindow = 30 * 24 * time.Hour

// dayLayout is accepted alongside RFC 3339 for the start and end parameters.
const dayLayout = "2006-01-02"

// JournalService is the journal surface the HTTP API needs.
type JournalService interface {
	AddEntry(ctx context.Context, content string, createdAt time.Time) (*types.JournalEntry, bool, error)
	ListEntries(ctx context.Context, start, end time.Time) ([]types.JournalEntry, error)
	Backfill(ctx context.Context, limit int) (engine.BackfillResult, error)
	Health(ctx context.Context) engine.HealthReport
}

// JournalHandlers serves /api/journal and /api/summary.
type JournalHandlers struct {
	journal JournalService
	clock   func() time.Time
	log     zerolog.Logger
}

// NewJournalHandlers creates a new JournalHandlers instance.
func NewJournalHandlers(journal JournalService, log zerolog.Logger) *JournalHandlers {
	return &JournalHandlers{
		journal: journal,
		clock:   time.Now,
		log:     log.With().Str("handler", "journal").Logger(),
	}
}

// CreateEntry handles POST /api/journal.
func (h *JournalHandlers) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var createdAt time.Time
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	entry, embedded, err := h.journal.AddEntry(r.Context(), req.Content, createdAt)
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateEntryResponse{
		Success:  true,
		Entry:    withoutEmbedding(*entry),
		Embedded: embedded,
	})
}

// CreateSummary handles POST /api/summary.
//
// A summary is stored as an ordinary entry dated at the end of the period it
// covers, or now when no end is given.
func (h *JournalHandlers) CreateSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var coverage Coverage
	createdAt := h.clock()
	if req.End != "" {
		t, err := parseTimeParam(req.End, false)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid end: %v", err))
			return
		}
		coverage.End = &t
		createdAt = t
	}
	if req.Start != "" {
		t, err := parseTimeParam(req.Start, false)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid start: %v", err))
			return
		}
		if err := types.NewDateRange(t, createdAt).Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		coverage.Start = &t
	}

	entry, embedded, err := h.journal.AddEntry(r.Context(), req.Content, createdAt)
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}

	h.log.Info().Str("entry_id", entry.ID).Bool("bounded", coverage.Start != nil).Msg("summary saved")
	respondJSON(w, http.StatusCreated, SummaryResponse{
		Success:  true,
		Entry:    withoutEmbedding(*entry),
		Embedded: embedded,
		Coverage: coverage,
	})
}

// ListEntries handles GET /api/journal?start=&end=.
//
// Both bounds accept RFC 3339 or YYYY-MM-DD. A bare end date covers that
// whole day. end defaults to now and start to DefaultListWindow before end.
func (h *JournalHandlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	end := h.clock()
	if raw := q.Get("end"); raw != "" {
		t, err := parseTimeParam(raw, true)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid end: %v", err))
			return
		}
		end = t
	}

	start := end.Add(-DefaultListWindow)
	if raw := q.Get("start"); raw != "" {
		t, err := parseTimeParam(raw, false)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid start: %v", err))
			return
		}
		start = t
	}

	entries, err := h.journal.ListEntries(r.Context(), start, end)
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}

	out := make([]types.JournalEntry, len(entries))
	for i, e := range entries {
		out[i] = withoutEmbedding(e)
	}
	respondJSON(w, http.StatusOK, ListEntriesResponse{
		Success: true,
		Entries: out,
		Total:   len(out),
		Start:   start,
		End:     end,
	})
}

func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.Parse(dayLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or %s, got %q", dayLayout, raw)
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	}
	return day, nil
}

// Vectors are large and meaningless to API clients.
func withoutEmbedding(e types.JournalEntry) types.JournalEntry {
	e.Embedding = nil
	return e
}
