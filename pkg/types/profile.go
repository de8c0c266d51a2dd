package types

import "strings"

// NameMapping is a user-declared alias that helps resolve spelling variants
// of a person's name appearing in journal text.
type NameMapping struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UserProfile holds the free-text background the user has written about
// themselves. It is read-only input to the query pipeline.
type UserProfile struct {
	Background      string        `json:"background_info"`
	Goals           string        `json:"goals"`
	CurrentProjects string        `json:"current_projects"`
	Other           string        `json:"other"`
	NameMappings    []NameMapping `json:"name_mappings"`
}

// HasText reports whether any of the four free-text fields is non-blank.
func (p *UserProfile) HasText() bool {
	if p == nil {
		return false
	}
	for _, f := range []string{p.Background, p.Goals, p.CurrentProjects, p.Other} {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

// ValidNameMappings returns the mappings with a non-blank name, in order.
func (p *UserProfile) ValidNameMappings() []NameMapping {
	if p == nil {
		return nil
	}
	out := make([]NameMapping, 0, len(p.NameMappings))
	for _, m := range p.NameMappings {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
