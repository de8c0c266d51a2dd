package storage

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/scrypster/reverie/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// SimilarityOptions bounds a similarity search.
type SimilarityOptions struct {
	// Threshold is the minimum cosine similarity, in [-1, 1].
	Threshold float64

	// Limit is the maximum number of results (default: 15).
	Limit int
}

// DefaultSimilarityLimit is used when SimilarityOptions.Limit is not positive.
const DefaultSimilarityLimit = 15

// Normalize applies defaults in place.
func (o *SimilarityOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultSimilarityLimit
	}
}

// ScoredEntry is a similarity search hit.
type ScoredEntry struct {
	Entry      types.JournalEntry
	Similarity float64
}

// Entries strips the scores, keeping order.
func Entries(hits []ScoredEntry) []types.JournalEntry {
	out := make([]types.JournalEntry, len(hits))
	for i, h := range hits {
		out[i] = h.Entry
	}
	return out
}

// ValidateEntry checks the fields every backend requires before writing.
func ValidateEntry(entry *types.JournalEntry) error {
	if entry == nil {
		return ErrInvalidInput
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: entry ID is required", ErrInvalidInput)
	}
	if strings.TrimSpace(entry.Content) == "" {
		return fmt.Errorf("%w: entry content is required", ErrInvalidInput)
	}
	if entry.CreatedAt.IsZero() {
		return fmt.Errorf("%w: entry created_at is required", ErrInvalidInput)
	}
	if entry.HasEmbedding() && entry.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding model is required with an embedding", ErrInvalidInput)
	}
	return nil
}

// CosineSimilarity computes cosine similarity between two equal-length vectors.
// Returns 0 if either vector has zero magnitude or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
