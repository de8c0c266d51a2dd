package prompt

import (
	"fmt"
	"strings"

	"github.com/scrypster/reverie/pkg/types"
)

// DefaultHistoryWindow is the number of prior messages kept in a transcript.
const DefaultHistoryWindow = 8

// BoundHistory returns at most the last window messages of history in their
// original order. Messages with blank content are dropped before counting and
// every role other than assistant is treated as user. A non-positive window
// falls back to DefaultHistoryWindow.
func BoundHistory(history []types.Message, window int) []types.Message {
	if window <= 0 {
		window = DefaultHistoryWindow
	}

	kept := make([]types.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := types.RoleUser
		if m.Role == types.RoleAssistant {
			role = types.RoleAssistant
		}
		kept = append(kept, types.Message{Role: role, Content: m.Content})
	}

	if len(kept) > window {
		kept = kept[len(kept)-window:]
	}
	return kept
}

// ValidateHistory rejects history messages the caller may not supply.
// System instructions are always generated server-side.
func ValidateHistory(history []types.Message) error {
	for i, m := range history {
		switch m.Role {
		case types.RoleUser, types.RoleAssistant, "":
		default:
			return fmt.Errorf("history[%d]: unsupported role %q", i, m.Role)
		}
	}
	return nil
}
