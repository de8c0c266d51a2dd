package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/scrypster/reverie/internal/storage"
)

// similarityMaxCandidates caps how many embeddings are loaded per search.
// Candidates are taken newest first. Personal journals stay far below this.
const similarityMaxCandidates = 20_000

// SimilaritySearch ranks stored embeddings by cosine similarity to query.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, opts storage.SimilarityOptions) ([]storage.ScoredEntry, error) {
	opts.Normalize()
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector cannot be empty", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, embedding, dimension, embedding_model
		FROM journal_entries
		WHERE embedding IS NOT NULL AND dimension = ?
		ORDER BY created_at DESC
		LIMIT ?`, len(query), similarityMaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []storage.ScoredEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan embedding row: %w", err)
		}
		sim := storage.CosineSimilarity(query, e.Embedding)
		if sim < opts.Threshold {
			continue
		}
		hits = append(hits, storage.ScoredEntry{Entry: *e, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating embeddings: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// serializeEmbedding encodes a vector as little-endian float32 bits.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding decodes a vector, validating the buffer against dimension.
func deserializeEmbedding(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}

	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
