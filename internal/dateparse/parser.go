// Package dateparse extracts an optional calendar range from the free text of
// a journal question ("what did I do last week?", "how was March?").
//
// Recognition is an ordered list of Matchers. The first matcher that accepts
// the question decides the range; when none does, the range is open and ends
// at the current instant.
package dateparse

import (
	"time"

	"github.com/scrypster/reverie/pkg/types"
)

// Matcher recognises one class of temporal phrase.
type Matcher interface {
	// Name identifies the matcher in logs and tests.
	Name() string

	// TryMatch returns the range implied by question relative to now, and
	// whether the phrase was found. question is already lower-cased.
	TryMatch(question string, now time.Time) (types.DateRange, bool)
}

// Clock returns the current time. It is injected so tests can pin "now".
type Clock func() time.Time

// Parser applies matchers in priority order.
type Parser struct {
	matchers []Matcher
	clock    Clock
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides the time source (default: time.Now).
func WithClock(c Clock) Option {
	return func(p *Parser) {
		p.clock = c
	}
}

// WithMatchers replaces the default matcher list. Order is priority order.
func WithMatchers(m ...Matcher) Option {
	return func(p *Parser) {
		p.matchers = m
	}
}

// NewParser creates a Parser using DefaultMatchers unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		matchers: DefaultMatchers(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the date range implied by question.
func (p *Parser) Parse(question string) types.DateRange {
	rng, _ := p.ParseWithMatch(question)
	return rng
}

// ParseWithMatch is Parse that also reports the name of the matcher that
// fired, or "" when the range is open.
func (p *Parser) ParseWithMatch(question string) (types.DateRange, string) {
	return p.ParseAt(question, p.clock())
}

// ParseAt is ParseWithMatch relative to an explicit now, for callers that
// stamp the whole request with one instant.
func (p *Parser) ParseAt(question string, now time.Time) (types.DateRange, string) {
	q := normalize(question)
	for _, m := range p.matchers {
		if rng, ok := m.TryMatch(q, now); ok {
			return rng, m.Name()
		}
	}
	return types.OpenRange(now), ""
}

// Matchers returns the parser's matcher names in priority order.
func (p *Parser) Matchers() []string {
	names := make([]string, len(p.matchers))
	for i, m := range p.matchers {
		names[i] = m.Name()
	}
	return names
}
