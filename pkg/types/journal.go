package types

import (
	"errors"
	"time"
)

// JournalEntry is a single time-stamped journal entry.
// Entries are owned by the storage layer and treated as immutable once retrieved.
type JournalEntry struct {
	ID        string    `json:"id"`         // Unique identifier (uuid)
	Content   string    `json:"content"`    // Raw entry text
	CreatedAt time.Time `json:"created_at"` // Effective time of the entry, not necessarily save time

	// Embedding fields
	Embedding      []float32 `json:"embedding,omitempty"`       // Vector embedding for semantic search
	EmbeddingModel string    `json:"embedding_model,omitempty"` // Model used for embedding
}

// HasEmbedding reports whether the entry carries a non-empty embedding vector.
func (e *JournalEntry) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// ErrInvalidRange is returned by DateRange.Validate when Start is after End.
var ErrInvalidRange = errors.New("date range start is after end")

// DateRange bounds a retrieval in time.
// A nil Start means "no temporal constraint"; End always holds a concrete value.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   time.Time  `json:"end"`
}

// OpenRange returns a range without a lower bound ending at end.
func OpenRange(end time.Time) DateRange {
	return DateRange{End: end}
}

// NewDateRange returns a bounded range from start to end.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: &start, End: end}
}

// IsBounded reports whether the range carries a start.
func (r DateRange) IsBounded() bool {
	return r.Start != nil
}

// Validate checks the start <= end invariant.
func (r DateRange) Validate() error {
	if r.Start != nil && r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}
