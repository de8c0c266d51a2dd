package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/reverie/pkg/types"
)

// endOfDayNanos is 23:59:59.999 expressed as the nanosecond field of the last
// representable millisecond.
const endOfDayNanos = 999 * int(time.Millisecond)

// DefaultMatchers returns the built-in matchers in priority order.
func DefaultMatchers() []Matcher {
	return []Matcher{
		&trailingSpan{
			name:    "last_week",
			pattern: regexp.MustCompile(`\b(?:last|past|previous)\s+week\b`),
			shift:   func(now time.Time) time.Time { return now.AddDate(0, 0, -7) },
		},
		&trailingSpan{
			name:    "last_month",
			pattern: regexp.MustCompile(`\b(?:last|past|previous)\s+month\b`),
			shift:   func(now time.Time) time.Time { return now.AddDate(0, -1, 0) },
		},
		&trailingSpan{
			name:    "last_year",
			pattern: regexp.MustCompile(`\b(?:last|past|previous)\s+year\b`),
			shift:   func(now time.Time) time.Time { return now.AddDate(-1, 0, 0) },
		},
		lastNDays{pattern: regexp.MustCompile(`\blast\s+(\d+)\s+days?\b`)},
		yesterday{pattern: regexp.MustCompile(`\byesterday\b`)},
		today{pattern: regexp.MustCompile(`\btoday\b`)},
		monthName{pattern: regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)},
	}
}

func normalize(question string) string {
	return strings.ToLower(question)
}

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endOfDay returns 23:59:59.999 of t's calendar day in t's location.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, endOfDayNanos, t.Location())
}

// trailingSpan matches "last/past/previous <unit>" and covers shift(now)..now.
type trailingSpan struct {
	name    string
	pattern *regexp.Regexp
	shift   func(now time.Time) time.Time
}

func (m *trailingSpan) Name() string { return m.name }

func (m *trailingSpan) TryMatch(q string, now time.Time) (types.DateRange, bool) {
	if !m.pattern.MatchString(q) {
		return types.DateRange{}, false
	}
	return types.NewDateRange(m.shift(now), now), true
}

// lastNDays matches "last N days" for a positive integer N.
type lastNDays struct {
	pattern *regexp.Regexp
}

func (lastNDays) Name() string { return "last_n_days" }

func (m lastNDays) TryMatch(q string, now time.Time) (types.DateRange, bool) {
	sub := m.pattern.FindStringSubmatch(q)
	if sub == nil {
		return types.DateRange{}, false
	}
	n, err := strconv.Atoi(sub[1])
	if err != nil || n <= 0 {
		return types.DateRange{}, false
	}
	return types.NewDateRange(now.AddDate(0, 0, -n), now), true
}

// yesterday covers the whole previous calendar day.
type yesterday struct {
	pattern *regexp.Regexp
}

func (yesterday) Name() string { return "yesterday" }

func (m yesterday) TryMatch(q string, now time.Time) (types.DateRange, bool) {
	if !m.pattern.MatchString(q) {
		return types.DateRange{}, false
	}
	day := now.AddDate(0, 0, -1)
	return types.NewDateRange(startOfDay(day), endOfDay(day)), true
}

// today covers midnight up to now.
type today struct {
	pattern *regexp.Regexp
}

func (today) Name() string { return "today" }

func (m today) TryMatch(q string, now time.Time) (types.DateRange, bool) {
	if !m.pattern.MatchString(q) {
		return types.DateRange{}, false
	}
	return types.NewDateRange(startOfDay(now), now), true
}

// monthName covers a whole named month of the current year. A month that has
// not happened yet this year still resolves to the current year, and an
// elapsed month is never moved to the previous year.
type monthName struct {
	pattern *regexp.Regexp
}

func (monthName) Name() string { return "month_name" }

var monthsByName = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

func (m monthName) TryMatch(q string, now time.Time) (types.DateRange, bool) {
	sub := m.pattern.FindStringSubmatch(q)
	if sub == nil {
		return types.DateRange{}, false
	}
	month := monthsByName[sub[1]]
	loc := now.Location()
	start := time.Date(now.Year(), month, 1, 0, 0, 0, 0, loc)
	last := start.AddDate(0, 1, -1)
	return types.NewDateRange(start, endOfDay(last)), true
}
