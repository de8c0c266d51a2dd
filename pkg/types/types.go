// Package types defines the core data structures for Reverie: journal
// entries, date ranges, the user profile, conversation messages and the
// persona modes that shape generated answers.
package types

import (
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

// Message role constants
const (
	// RoleSystem is the instruction message placed first in every transcript
	RoleSystem Role = "system"

	// RoleUser marks messages written by the journal owner
	RoleUser Role = "user"

	// RoleAssistant marks previously generated answers
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered sequence of messages handed to the generation
// service for a single request.
type Transcript []Message

// Mode selects the persona used to answer a question.
type Mode string

// Persona mode constants
const (
	ModeCoach        Mode = "coach"        // Reflective coach (default)
	ModeTherapist    Mode = "therapist"    // Clinical but non-diagnostic reflective listener
	ModeProductivity Mode = "productivity" // Pragmatic task-extraction coach
	ModeFriend       Mode = "friend"       // Supportive peer
	ModeAnalyst      Mode = "analyst"      // Quantitative trend analyst
	ModeContent      Mode = "content"      // Content-ideation assistant
)

// DefaultMode is used when a request does not name a persona.
const DefaultMode = ModeCoach

// ValidModes contains every supported persona mode, in display order.
var ValidModes = []Mode{
	ModeCoach,
	ModeTherapist,
	ModeProductivity,
	ModeFriend,
	ModeAnalyst,
	ModeContent,
}

// ParseMode converts a request tag into a Mode. An empty tag yields
// DefaultMode; unknown tags are rejected.
func ParseMode(tag string) (Mode, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return DefaultMode, nil
	}
	for _, m := range ValidModes {
		if string(m) == tag {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", tag)
}
