package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/internal/retry"
	"github.com/scrypster/reverie/pkg/types"
)

type fakeEmbedder struct {
	errs  []error
	calls int
	vec   []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) GetModel() string { return "fake-embed" }

type fakeStreamer struct {
	errs  []error
	calls int
}

func (f *fakeStreamer) StreamChat(ctx context.Context, _ types.Transcript) (<-chan Chunk, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	ch := make(chan Chunk, 2)
	ch <- Chunk{Content: "ok"}
	ch <- Chunk{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeStreamer) GetModel() string { return "fake-chat" }

func fastRetry() retry.Policy {
	return retry.Policy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxElapsed: time.Second, MaxAttempts: 3}
}

func TestRetryingEmbedder_RetriesTransient(t *testing.T) {
	inner := &fakeEmbedder{errs: []error{&StatusError{Code: 503}}, vec: []float32{1}}
	e := NewRetryingEmbedder(inner, fastRetry(), zerolog.Nop())

	vec, err := e.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "fake-embed", e.GetModel())
}

func TestRetryingEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	inner := &fakeEmbedder{errs: []error{&StatusError{Code: 400}}}
	e := NewRetryingEmbedder(inner, fastRetry(), zerolog.Nop())

	_, err := e.Embed(context.Background(), "q")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingEmbedder_DoesNotRetryOpenCircuit(t *testing.T) {
	inner := &fakeEmbedder{errs: []error{ErrCircuitOpen, ErrCircuitOpen}}
	e := NewRetryingEmbedder(inner, fastRetry(), zerolog.Nop())

	_, err := e.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingStreamer_RetriesOpenOnly(t *testing.T) {
	inner := &fakeStreamer{errs: []error{errors.New("connection refused"), errors.New("connection refused")}}
	s := NewRetryingStreamer(inner, fastRetry(), zerolog.Nop())

	ch, err := s.StreamChat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)

	c := <-ch
	assert.Equal(t, "ok", c.Content)
}

func TestRetryingStreamer_GivesUp(t *testing.T) {
	inner := &fakeStreamer{errs: []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}}
	s := NewRetryingStreamer(inner, fastRetry(), zerolog.Nop())

	_, err := s.StreamChat(context.Background(), nil)
	assert.EqualError(t, err, "c")
	assert.Equal(t, 3, inner.calls)
}

// TestCachedEmbedder_FallsThroughWhenRedisDown verifies an unreachable cache
// never fails the request.
func TestCachedEmbedder_FallsThroughWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = client.Close() }()

	inner := &fakeEmbedder{vec: []float32{0.5, 0.5}}
	c := NewCachedEmbedder(inner, client, time.Minute, zerolog.Nop())

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "fake-embed", c.GetModel())
}

func TestCachedEmbedder_KeyIsModelScoped(t *testing.T) {
	c := NewCachedEmbedder(&fakeEmbedder{}, nil, time.Minute, zerolog.Nop())

	k1 := c.key("hello")
	k2 := c.key("hello")
	k3 := c.key("Hello")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, embeddingKeyPrefix+"fake-embed:")
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
