package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/dateparse"
	"github.com/scrypster/reverie/internal/llm"
	"github.com/scrypster/reverie/internal/prompt"
	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/internal/stream"
	"github.com/scrypster/reverie/pkg/types"
)

// Request is one question from the caller.
type Request struct {
	Question string          `json:"question"`
	History  []types.Message `json:"history,omitempty"`
	Mode     string          `json:"mode,omitempty"`
}

// Answer is an open answer stream plus what the pipeline decided for it.
type Answer struct {
	*stream.Stream

	ID       string
	Mode     types.Mode
	Strategy Strategy
	Entries  int

	log zerolog.Logger
}

// Deliver writes the answer to w, flushing per chunk when w supports it.
// An interrupted answer ends with stream.InterruptedMarker; the cause is
// logged and returned.
func (a *Answer) Deliver(w io.Writer) error {
	defer func() { _ = a.Close() }()

	began := time.Now()
	_, err := a.WriteTo(w)
	stageDuration.WithLabelValues(string(StageStream)).Observe(time.Since(began).Seconds())

	outcome := "completed"
	if err != nil {
		outcome = "interrupted"
		a.log.Error().Stack().Err(err).Str("stage", string(StageStream)).Msg("answer stream interrupted")
	} else {
		a.log.Info().Dur("stream_ms", time.Since(began)).Msg("answer delivered")
	}
	queriesTotal.WithLabelValues(string(a.Mode), string(a.Strategy), outcome).Inc()
	return err
}

// Pipeline answers questions about the journal. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	parser      *dateparse.Parser
	retriever   *Retriever
	profiles    storage.ProfileStore
	builder     *prompt.Builder
	streamer    llm.ChatStreamer
	defaultMode types.Mode
	clock       func() time.Time
	log         zerolog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDefaultMode sets the persona used when a request names none.
func WithDefaultMode(m types.Mode) PipelineOption {
	return func(p *Pipeline) {
		if m != "" {
			p.defaultMode = m
		}
	}
}

// WithClock overrides the time source used for date parsing and the date stamp.
func WithClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.clock = clock }
}

// NewPipeline wires the collaborators together. profiles may be nil.
func NewPipeline(
	parser *dateparse.Parser,
	retriever *Retriever,
	profiles storage.ProfileStore,
	builder *prompt.Builder,
	streamer llm.ChatStreamer,
	log zerolog.Logger,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		parser:      parser,
		retriever:   retriever,
		profiles:    profiles,
		builder:     builder,
		streamer:    streamer,
		defaultMode: types.DefaultMode,
		clock:       time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask validates req, retrieves context, builds the transcript and opens the
// generation stream. The returned Answer must be closed (Deliver does so).
//
// Validation failures wrap ErrValidation and happen before any collaborator
// is called. Collaborator failures are *StageError values.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Answer, error) {
	id := uuid.NewString()
	log := p.log.With().Str("request_id", id).Logger()

	question := strings.TrimSpace(req.Question)
	mode, err := p.validate(question, req)
	if err != nil {
		queriesTotal.WithLabelValues("", "", "rejected").Inc()
		log.Debug().Err(err).Msg("request rejected")
		return nil, err
	}
	log = log.With().Str("mode", string(mode)).Logger()

	now := p.clock()
	rng, matcher := p.parser.ParseAt(question, now)
	strategy := StrategyFor(rng)
	log.Debug().Str("matcher", matcher).Str("strategy", string(strategy)).Msg("question parsed")

	entries, err := p.retriever.Retrieve(ctx, question, rng)
	if err != nil {
		return nil, p.fail(log, mode, strategy, err)
	}

	profile := p.loadProfile(ctx, log)

	transcript, err := p.builder.Build(prompt.Input{
		Mode:     mode,
		Entries:  entries,
		Profile:  profile,
		History:  req.History,
		Question: question,
		Now:      now,
	})
	if err != nil {
		return nil, p.fail(log, mode, strategy, stageErr(StagePrompt, err))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	began := time.Now()
	chunks, err := p.streamer.StreamChat(streamCtx, transcript)
	stageDuration.WithLabelValues(string(StageGenerate)).Observe(time.Since(began).Seconds())
	if err != nil {
		cancel()
		return nil, p.fail(log, mode, strategy, stageErr(StageGenerate, err))
	}

	log.Info().
		Str("strategy", string(strategy)).
		Int("entries", len(entries)).
		Bool("profile", profile != nil).
		Int("messages", len(transcript)).
		Str("model", p.streamer.GetModel()).
		Msg("answer stream opened")

	return &Answer{
		Stream:   stream.New(ctx, chunks, cancel, stream.WithObserver(func(string) { streamedChunks.Inc() })),
		ID:       id,
		Mode:     mode,
		Strategy: strategy,
		Entries:  len(entries),
		log:      log,
	}, nil
}

func (p *Pipeline) validate(question string, req Request) (types.Mode, error) {
	if question == "" {
		return "", validationErr("question is required")
	}
	mode := p.defaultMode
	if strings.TrimSpace(req.Mode) != "" {
		m, err := types.ParseMode(req.Mode)
		if err != nil {
			return "", validationErr("%v", err)
		}
		mode = m
	}
	if err := prompt.ValidateHistory(req.History); err != nil {
		return "", validationErr("%v", err)
	}
	return mode, nil
}

// loadProfile never fails the request: a missing or unreadable profile
// means the prompt is built without one.
func (p *Pipeline) loadProfile(ctx context.Context, log zerolog.Logger) *types.UserProfile {
	if p.profiles == nil {
		return nil
	}
	profile, err := p.profiles.LoadProfile(ctx)
	switch {
	case err == nil:
		return profile
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		log.Warn().Err(err).Str("stage", string(StageProfile)).Msg("continuing without profile")
		return nil
	}
}

func (p *Pipeline) fail(log zerolog.Logger, mode types.Mode, strategy Strategy, err error) error {
	queriesTotal.WithLabelValues(string(mode), string(strategy), "failed").Inc()
	log.Error().Stack().Err(err).Str("stage", string(StageOf(err))).Msg("question failed")
	return err
}
