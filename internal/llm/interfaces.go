package llm

import (
	"context"

	"github.com/scrypster/reverie/pkg/types"
)

// Chunk is one element of a streamed chat response.
//
// Exactly one of the fields is meaningful per chunk: a non-empty Content
// delta, a terminal Err, or Done marking the normal end of the stream.
type Chunk struct {
	Content string
	Err     error
	Done    bool
}

// ChatStreamer is the interface for streamed chat generation.
//
// StreamChat returns once the provider has accepted the request. Errors that
// happen before any output (bad status, unreachable host, open circuit) are
// returned directly; later failures arrive as a Chunk with Err set. The
// returned channel is unbuffered and closed by the producer. Cancelling ctx
// stops production and releases the upstream connection.
type ChatStreamer interface {
	StreamChat(ctx context.Context, transcript types.Transcript) (<-chan Chunk, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
