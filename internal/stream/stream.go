// Package stream exposes a generated answer as a pull-based sequence of text
// chunks. The upstream producer only advances when the consumer asks for the
// next chunk, and Close stops it.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/scrypster/reverie/internal/llm"
)

// ErrInterrupted is returned by Next when the answer stopped before the
// producer signalled completion. The upstream cause is wrapped with it.
var ErrInterrupted = errors.New("stream interrupted")

// InterruptedMarker is appended to the text by WriteTo when the answer is cut
// off, so a reader of the plain-text body can tell it is incomplete.
const InterruptedMarker = "\n\n[Response interrupted: the answer could not be completed. Please try again.]"

// Stream reads deltas from an upstream channel. A Stream has exactly one
// consumer and is not safe for concurrent use, except for Close.
type Stream struct {
	ctx     context.Context
	chunks  <-chan llm.Chunk
	cancel  context.CancelFunc
	observe func(delta string)

	closeOnce sync.Once
	err       error
}

// Option configures a Stream.
type Option func(*Stream)

// WithObserver registers fn to be called with every delta Next returns.
func WithObserver(fn func(delta string)) Option {
	return func(s *Stream) { s.observe = fn }
}

// New wraps chunks. cancel must stop the producer of chunks; it is invoked
// by Close and once the stream ends. ctx bounds WriteTo.
func New(ctx context.Context, chunks <-chan llm.Chunk, cancel context.CancelFunc, opts ...Option) *Stream {
	if cancel == nil {
		cancel = func() {}
	}
	s := &Stream{ctx: ctx, chunks: chunks, cancel: cancel}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next non-empty delta. It returns io.EOF after the last
// delta of a complete answer and an error wrapping ErrInterrupted when the
// producer failed, the channel closed early, or ctx was cancelled. Once Next
// returns an error every later call returns the same error.
func (s *Stream) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}

	for {
		// A cancelled consumer wins over a chunk that is already waiting.
		if err := ctx.Err(); err != nil {
			return "", s.finish(interrupted(err))
		}
		select {
		case <-ctx.Done():
			return "", s.finish(interrupted(ctx.Err()))
		case c, ok := <-s.chunks:
			switch {
			case !ok:
				return "", s.finish(interrupted(llm.ErrStreamTruncated))
			case c.Err != nil:
				return "", s.finish(interrupted(c.Err))
			case c.Done:
				return "", s.finish(io.EOF)
			case c.Content == "":
				continue
			}
			if s.observe != nil {
				s.observe(c.Content)
			}
			return c.Content, nil
		}
	}
}

// Close cancels upstream production. It is safe to call more than once and
// from another goroutine than the consumer.
func (s *Stream) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

// WriteTo copies the answer to w, flushing after every chunk when w is an
// http.Flusher. A complete answer returns a nil error. An interrupted answer
// is terminated with InterruptedMarker and the interruption is returned.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)
	var written int64

	for {
		delta, err := s.Next(s.ctx)
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			n, _ := io.WriteString(w, InterruptedMarker)
			written += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
			return written, err
		}

		n, werr := io.WriteString(w, delta)
		written += int64(n)
		if werr != nil {
			_ = s.Close()
			return written, fmt.Errorf("stream: write failed: %w", werr)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Stream) finish(err error) error {
	s.err = err
	_ = s.Close()
	return err
}

func interrupted(cause error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}
