package handlers

import (
	"time"

	"github.com/scrypster/reverie/internal/engine"
	"github.com/scrypster/reverie/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// QueryRequest is the request body for POST /api/query and the message
// format read from /api/query/ws.
type QueryRequest struct {
	Question string          `json:"question"`
	History  []types.Message `json:"history,omitempty"`
	Mode     string          `json:"mode,omitempty"`
}

func (q QueryRequest) toEngine() engine.Request {
	return engine.Request{Question: q.Question, History: q.History, Mode: q.Mode}
}

// CreateEntryRequest is the request body for POST /api/journal.
// CreatedAt is optional and defaults to the time the entry is received.
type CreateEntryRequest struct {
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// CreateEntryResponse is returned by POST /api/journal.
type CreateEntryResponse struct {
	Success  bool               `json:"success"`
	Entry    types.JournalEntry `json:"entry"`
	Embedded bool               `json:"embedded"`
}

// SummaryRequest is the request body for POST /api/summary. Start and End
// describe the period the summary covers and accept RFC 3339 or YYYY-MM-DD.
type SummaryRequest struct {
	Content string `json:"content"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// Coverage is the period a saved summary describes.
type Coverage struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// SummaryResponse is returned by POST /api/summary.
type SummaryResponse struct {
	Success  bool               `json:"success"`
	Entry    types.JournalEntry `json:"entry"`
	Embedded bool               `json:"embedded"`
	Coverage Coverage           `json:"coverage"`
}

// ListEntriesResponse is returned by GET /api/journal.
type ListEntriesResponse struct {
	Success bool                 `json:"success"`
	Entries []types.JournalEntry `json:"entries"`
	Total   int                  `json:"total"`
	Start   time.Time            `json:"start"`
	End     time.Time            `json:"end"`
}

// ProfileRequest is the request body for PUT /api/context.
//
// The four text fields are pointers so a missing field can be told apart
// from an empty one.
type ProfileRequest struct {
	Background      *string             `json:"background_info"`
	Goals           *string             `json:"goals"`
	CurrentProjects *string             `json:"current_projects"`
	Other           *string             `json:"other"`
	NameMappings    []types.NameMapping `json:"name_mappings,omitempty"`
}

// ProfileResponse is returned by GET and PUT /api/context.
type ProfileResponse struct {
	Success bool              `json:"success"`
	Data    types.UserProfile `json:"data"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Success bool `json:"success"`
	engine.HealthReport
}

// BackfillResponse is returned by POST /api/backfill.
type BackfillResponse struct {
	Success bool `json:"success"`
	engine.BackfillResult
}

// StreamFrame is one websocket message sent while answering a query.
type StreamFrame struct {
	Type     string `json:"type"` // "start", "delta", "done" or "error"
	ID       string `json:"id,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Websocket frame types.
const (
	FrameStart = "start"
	FrameDelta = "delta"
	FrameDone  = "done"
	FrameError = "error"
)
