package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/reverie/pkg/types"
)

// EntryDateLayout formats the calendar date heading of each entry group.
const EntryDateLayout = "Monday, January 2, 2006"

// NoEntriesNotice replaces the journal context when retrieval found nothing.
const NoEntriesNotice = "No journal entries were found for this question."

// FormatEntries renders entries grouped by calendar date in loc, newest date
// first. Entries within a date keep their input order and are numbered from 1.
// A blank line follows every entry so multi-line content keeps its boundary.
func FormatEntries(entries []types.JournalEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return NoEntriesNotice
	}
	if loc == nil {
		loc = time.Local
	}

	type group struct {
		day     time.Time
		entries []types.JournalEntry
	}
	byDay := make(map[string]*group)
	for _, e := range entries {
		local := e.CreatedAt.In(loc)
		key := local.Format("2006-01-02")
		g, ok := byDay[key]
		if !ok {
			y, m, d := local.Date()
			g = &group{day: time.Date(y, m, d, 0, 0, 0, 0, loc)}
			byDay[key] = g
		}
		g.entries = append(g.entries, e)
	}

	groups := make([]*group, 0, len(byDay))
	for _, g := range byDay {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].day.After(groups[j].day)
	})

	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "Entries from %s:\n", g.day.Format(EntryDateLayout))
		for i, e := range g.entries {
			fmt.Fprintf(&b, "[Entry %d]: %s\n\n", i+1, strings.TrimSpace(e.Content))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatProfile renders the non-blank profile fields as a labelled block.
// It returns "" for a nil profile or one with no text.
func FormatProfile(p *types.UserProfile) string {
	if !p.HasText() {
		return ""
	}

	fields := []struct {
		label string
		value string
	}{
		{"Background", p.Background},
		{"Goals", p.Goals},
		{"Current projects", p.CurrentProjects},
		{"Other context", p.Other},
	}

	var b strings.Builder
	b.WriteString("About the user:\n")
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", f.label, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

// nameVariantInstruction follows the list of known people.
const nameVariantInstruction = "Names in the journal may be spelled inconsistently or transcribed by voice. " +
	"Treat close spelling variants of the names above as the same person when the context supports it. " +
	"When you are unsure, keep the spelling used in the entry."

// FormatNameMappings renders the profile's known people as a bulleted list
// followed by the spelling-variant instruction. It returns "" when no mapping
// has a name.
func FormatNameMappings(p *types.UserProfile) string {
	var b strings.Builder
	for _, m := range p.ValidNameMappings() {
		name := strings.TrimSpace(m.Name)
		if b.Len() == 0 {
			b.WriteString("People the user writes about:\n")
		}
		if desc := strings.TrimSpace(m.Description); desc != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", name, desc)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString(nameVariantInstruction)
	return b.String()
}
