package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/retry"
	"github.com/scrypster/reverie/pkg/types"
)

// RetryingEmbedder retries transient embedding failures.
type RetryingEmbedder struct {
	next   EmbeddingGenerator
	policy retry.Policy
	log    zerolog.Logger
}

// NewRetryingEmbedder wraps next with the given retry policy.
func NewRetryingEmbedder(next EmbeddingGenerator, policy retry.Policy, log zerolog.Logger) *RetryingEmbedder {
	return &RetryingEmbedder{next: next, policy: policy, log: log}
}

// Embed calls the wrapped embedder, retrying transient errors.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) ([]float32, error) {
		vec, err := r.next.Embed(ctx, text)
		return vec, classify(err)
	}, notifier(r.log, "embed"))
}

// GetModel returns the wrapped embedder's model.
func (r *RetryingEmbedder) GetModel() string {
	return r.next.GetModel()
}

// RetryingStreamer retries opening a chat stream. Once StreamChat has
// returned a channel the attempt is final: deltas may already have been
// delivered and a second generation would duplicate them.
type RetryingStreamer struct {
	next   ChatStreamer
	policy retry.Policy
	log    zerolog.Logger
}

// NewRetryingStreamer wraps next with the given retry policy.
func NewRetryingStreamer(next ChatStreamer, policy retry.Policy, log zerolog.Logger) *RetryingStreamer {
	return &RetryingStreamer{next: next, policy: policy, log: log}
}

// StreamChat opens the wrapped stream, retrying transient setup errors.
func (r *RetryingStreamer) StreamChat(ctx context.Context, transcript types.Transcript) (<-chan Chunk, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) (<-chan Chunk, error) {
		ch, err := r.next.StreamChat(ctx, transcript)
		return ch, classify(err)
	}, notifier(r.log, "stream_open"))
}

// GetModel returns the wrapped streamer's model.
func (r *RetryingStreamer) GetModel() string {
	return r.next.GetModel()
}

// classify marks errors that retrying cannot fix.
func classify(err error) error {
	if err != nil && errors.Is(err, ErrCircuitOpen) {
		return retry.Permanent(err)
	}
	return err
}

func notifier(log zerolog.Logger, op string) retry.Notify {
	return func(err error, wait time.Duration) {
		retryAttempts.WithLabelValues(op).Inc()
		log.Warn().Err(err).Str("op", op).Dur("wait", wait).Msg("retrying provider call")
	}
}

// Compile-time assertions.
var (
	_ EmbeddingGenerator = (*RetryingEmbedder)(nil)
	_ ChatStreamer       = (*RetryingStreamer)(nil)
)
