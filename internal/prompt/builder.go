// Package prompt turns retrieved journal entries, the user profile and the
// conversation so far into the transcript sent to the generation service.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/reverie/pkg/types"
)

// TodayLayout formats the date stamp in the system message.
const TodayLayout = "Monday, January 2, 2006"

// Input is everything one transcript is built from.
type Input struct {
	Mode     types.Mode
	Entries  []types.JournalEntry
	Profile  *types.UserProfile
	History  []types.Message
	Question string
	Now      time.Time
}

// Builder assembles transcripts. It is safe for concurrent use once built.
type Builder struct {
	personas map[types.Mode]PersonaFunc
	window   int
	location *time.Location
}

// Option configures a Builder.
type Option func(*Builder)

// WithPersona adds or replaces the persona for mode.
func WithPersona(mode types.Mode, fn PersonaFunc) Option {
	return func(b *Builder) { b.personas[mode] = fn }
}

// WithHistoryWindow sets how many prior messages are kept.
func WithHistoryWindow(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.window = n
		}
	}
}

// WithLocation sets the zone used for entry dates and the date stamp.
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.location = loc
		}
	}
}

// NewBuilder returns a Builder with the default personas.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		personas: DefaultPersonas(),
		window:   DefaultHistoryWindow,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the transcript for in:
//
//	[system: persona, profile, names, date stamp]
//	[user: journal context]
//	...bounded history...
//	[user: question]
//
// The output depends only on in, so identical inputs give identical transcripts.
func (b *Builder) Build(in Input) (types.Transcript, error) {
	mode := in.Mode
	if mode == "" {
		mode = types.DefaultMode
	}
	render, ok := b.personas[mode]
	if !ok {
		return nil, fmt.Errorf("prompt: no persona for mode %q", mode)
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, fmt.Errorf("prompt: question is empty")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	sections := []string{render()}
	if p := FormatProfile(in.Profile); p != "" {
		sections = append(sections, p)
	}
	if n := FormatNameMappings(in.Profile); n != "" {
		sections = append(sections, n)
	}
	sections = append(sections, "Today's date is "+now.In(b.location).Format(TodayLayout)+".")

	history := BoundHistory(in.History, b.window)
	transcript := make(types.Transcript, 0, len(history)+3)
	transcript = append(transcript,
		types.Message{Role: types.RoleSystem, Content: strings.Join(sections, "\n\n")},
		types.Message{Role: types.RoleUser, Content: "Here are my journal entries:\n\n" + FormatEntries(in.Entries, b.location)},
	)
	transcript = append(transcript, history...)
	transcript = append(transcript, types.Message{Role: types.RoleUser, Content: question})
	return transcript, nil
}

// Modes lists the modes this builder can render.
func (b *Builder) Modes() []types.Mode {
	out := make([]types.Mode, 0, len(b.personas))
	for _, m := range types.ValidModes {
		if _, ok := b.personas[m]; ok {
			out = append(out, m)
		}
	}
	return out
}
