package engine

import (
	"time"

	"github.com/rs/zerolog"
)

// TraceEventKind classifies each trace event by type.
type TraceEventKind string

const (
	// KindRetrievalStarted is emitted once the strategy has been chosen.
	KindRetrievalStarted TraceEventKind = "retrieval_started"

	// KindCandidatesFound is emitted after the store answered.
	KindCandidatesFound TraceEventKind = "candidates_found"

	// KindScoredCandidate is emitted once per similarity hit.
	KindScoredCandidate TraceEventKind = "scored_candidate"

	// KindResultsReturned is emitted after the final chronological sort.
	KindResultsReturned TraceEventKind = "results_returned"
)

// TraceEvent is a single structured event emitted during retrieval.
type TraceEvent struct {
	Kind TraceEventKind `json:"kind"`
	At   time.Time      `json:"at"`

	// Strategy is "date_range" or "semantic".
	Strategy Strategy `json:"strategy,omitempty"`

	// Start and End bound date-range retrievals.
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	EntryID    string   `json:"entry_id,omitempty"`
	Similarity float64  `json:"similarity,omitempty"`
	Count      int      `json:"count,omitempty"`
	EntryIDs   []string `json:"entry_ids,omitempty"`
}

// Tracer receives retrieval trace events. It is called synchronously.
type Tracer func(TraceEvent)

// LogTracer writes every retrieval event to log at debug level.
func LogTracer(log zerolog.Logger) Tracer {
	return func(e TraceEvent) {
		evt := log.Debug().Str("event", string(e.Kind)).Str("strategy", string(e.Strategy))
		if e.Start != nil {
			evt = evt.Time("start", *e.Start)
		}
		if e.End != nil {
			evt = evt.Time("end", *e.End)
		}
		switch e.Kind {
		case KindScoredCandidate:
			evt = evt.Str("entry_id", e.EntryID).Float64("similarity", e.Similarity)
		case KindCandidatesFound, KindResultsReturned:
			evt = evt.Int("count", e.Count)
		}
		evt.Msg("retrieval trace")
	}
}

func newTraceEvent(kind TraceEventKind) TraceEvent {
	return TraceEvent{Kind: kind, At: time.Now()}
}

// EventRetrievalStarted creates a retrieval_started trace event.
func EventRetrievalStarted(strategy Strategy, start *time.Time, end time.Time) TraceEvent {
	e := newTraceEvent(KindRetrievalStarted)
	e.Strategy = strategy
	e.Start = start
	e.End = &end
	return e
}

// EventCandidatesFound creates a candidates_found trace event.
func EventCandidatesFound(strategy Strategy, count int) TraceEvent {
	e := newTraceEvent(KindCandidatesFound)
	e.Strategy = strategy
	e.Count = count
	return e
}

// EventScoredCandidate creates a scored_candidate trace event.
func EventScoredCandidate(entryID string, similarity float64) TraceEvent {
	e := newTraceEvent(KindScoredCandidate)
	e.Strategy = StrategySemantic
	e.EntryID = entryID
	e.Similarity = similarity
	return e
}

// EventResultsReturned creates a results_returned trace event.
func EventResultsReturned(strategy Strategy, entryIDs []string) TraceEvent {
	e := newTraceEvent(KindResultsReturned)
	e.Strategy = strategy
	e.EntryIDs = entryIDs
	e.Count = len(entryIDs)
	return e
}
