package llm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrStreamTruncated is reported when a provider closes the stream without
// its end-of-stream marker.
var ErrStreamTruncated = errors.New("stream ended without completion marker")

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// newStatusError drains up to 4KiB of body for the message.
func newStatusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Provider: provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// streamingHTTPClient bounds the wait for response headers only, leaving the
// body free to stream for as long as the request context allows.
func streamingHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// lineDecoder interprets one payload line of a stream. It returns the text
// delta (possibly empty), whether the payload marks the end of the stream,
// and any provider-reported error.
type lineDecoder func(payload string) (delta string, done bool, err error)

// pump reads body line by line, forwarding decoded deltas to out until the
// decoder reports completion, the body fails, or ctx is cancelled. It owns
// body and out and closes both.
func pump(ctx context.Context, body io.ReadCloser, out chan<- Chunk, extract func(line string) (string, bool), decode lineDecoder) {
	defer close(out)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		payload, ok := extract(scanner.Text())
		if !ok {
			continue
		}

		delta, done, err := decode(payload)
		if err != nil {
			send(ctx, out, Chunk{Err: err})
			return
		}
		if delta != "" && !send(ctx, out, Chunk{Content: delta}) {
			return
		}
		if done {
			send(ctx, out, Chunk{Done: true})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, out, Chunk{Err: fmt.Errorf("stream read error: %w", err)})
		return
	}
	send(ctx, out, Chunk{Err: ErrStreamTruncated})
}

// send delivers c unless ctx is cancelled first.
func send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// sseData returns the payload of an SSE "data:" line. Comments, event names
// and blank separators are skipped.
func sseData(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

// ndjsonLine accepts every non-blank line of a newline-delimited JSON stream.
func ndjsonLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	return line, line != ""
}
