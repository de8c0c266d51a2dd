package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// frameWriteTimeout bounds a single websocket write.
const frameWriteTimeout = 10 * time.Second

// QuerySocket serves GET /api/query/ws. Each text message on the socket is a
// QueryRequest; the answer comes back as a "start" frame, any number of
// "delta" frames and a closing "done" or "error" frame. Questions on one
// connection are answered one at a time.
type QuerySocket struct {
	asker          Asker
	originPatterns []string
	log            zerolog.Logger
}

// NewQuerySocket creates a QuerySocket. originPatterns lists the extra hosts
// allowed to open a socket; same-origin requests are always accepted.
func NewQuerySocket(asker Asker, originPatterns []string, log zerolog.Logger) *QuerySocket {
	return &QuerySocket{
		asker:          asker,
		originPatterns: originPatterns,
		log:            log.With().Str("handler", "query_ws").Logger(),
	}
}

// ServeHTTP upgrades the connection and answers questions until the client
// goes away.
func (h *QuerySocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	for {
		var req QueryRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		if err := h.answer(ctx, conn, req); err != nil {
			h.log.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

// answer streams one answer. The returned error is a transport failure; a
// failed question is reported to the client as an error frame.
func (h *QuerySocket) answer(ctx context.Context, conn *websocket.Conn, req QueryRequest) error {
	answer, err := h.asker.Ask(ctx, req.toEngine())
	if err != nil {
		_, message := classify(h.log, err)
		return writeFrame(ctx, conn, StreamFrame{Type: FrameError, Error: message})
	}

	start := StreamFrame{
		Type:     FrameStart,
		ID:       answer.ID,
		Mode:     string(answer.Mode),
		Strategy: string(answer.Strategy),
	}
	if err := writeFrame(ctx, conn, start); err != nil {
		_ = answer.Close()
		return err
	}

	fw := &frameWriter{ctx: ctx, conn: conn}
	if err := answer.Deliver(fw); err != nil {
		if fw.err != nil {
			return fw.err
		}
		return writeFrame(ctx, conn, StreamFrame{Type: FrameError, ID: answer.ID, Error: "answer interrupted"})
	}
	return writeFrame(ctx, conn, StreamFrame{Type: FrameDone, ID: answer.ID})
}

// frameWriter turns each Write into a delta frame.
type frameWriter struct {
	ctx  context.Context
	conn *websocket.Conn
	err  error
}

func (f *frameWriter) Write(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if err := writeFrame(f.ctx, f.conn, StreamFrame{Type: FrameDelta, Content: string(p)}); err != nil {
		f.err = err
		return 0, err
	}
	return len(p), nil
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame StreamFrame) error {
	ctx, cancel := context.WithTimeout(ctx, frameWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, frame)
}
