package prompt

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/pkg/types"
)

var buildNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func sampleInput() Input {
	return Input{
		Mode: types.ModeCoach,
		Entries: []types.JournalEntry{
			{Content: "Ran 5k", CreatedAt: time.Date(2024, time.March, 14, 7, 0, 0, 0, time.UTC)},
		},
		Profile: &types.UserProfile{
			Goals:        "Finish a half marathon",
			NameMappings: []types.NameMapping{{Name: "Mia", Description: "running buddy"}},
		},
		History: []types.Message{
			{Role: types.RoleUser, Content: "How is training going?"},
			{Role: types.RoleAssistant, Content: "Steadily."},
		},
		Question: "  What should I focus on next?  ",
		Now:      buildNow,
	}
}

func TestBuild_Order(t *testing.T) {
	b := NewBuilder(WithLocation(time.UTC))

	tr, err := b.Build(sampleInput())
	require.NoError(t, err)
	require.Len(t, tr, 5)

	assert.Equal(t, types.RoleSystem, tr[0].Role)
	assert.Contains(t, tr[0].Content, "reflective coach")
	assert.Contains(t, tr[0].Content, "Goals: Finish a half marathon")
	assert.Contains(t, tr[0].Content, "- Mia (running buddy)")
	assert.True(t, strings.HasSuffix(tr[0].Content, "Today's date is Friday, March 15, 2024."))

	assert.Equal(t, types.RoleUser, tr[1].Role)
	assert.Contains(t, tr[1].Content, "[Entry 1]: Ran 5k")

	assert.Equal(t, "How is training going?", tr[2].Content)
	assert.Equal(t, types.RoleAssistant, tr[3].Role)

	assert.Equal(t, types.Message{Role: types.RoleUser, Content: "What should I focus on next?"}, tr[4])
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(WithLocation(time.UTC))

	first, err := b.Build(sampleInput())
	require.NoError(t, err)
	second, err := b.Build(sampleInput())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_ModesDiffer(t *testing.T) {
	b := NewBuilder(WithLocation(time.UTC))
	seen := map[string]types.Mode{}

	for _, mode := range types.ValidModes {
		in := sampleInput()
		in.Mode = mode
		tr, err := b.Build(in)
		require.NoError(t, err, mode)

		system := tr[0].Content
		if prev, dup := seen[system]; dup {
			t.Fatalf("modes %s and %s render the same system message", prev, mode)
		}
		seen[system] = mode
		assert.Contains(t, system, closingRule, mode)
		assert.Contains(t, system, "Cite entries by their date and number", mode)
	}
	assert.Equal(t, types.ValidModes, b.Modes())
}

func TestBuild_DefaultsAndOmissions(t *testing.T) {
	b := NewBuilder(WithLocation(time.UTC))

	tr, err := b.Build(Input{Question: "Anything?", Now: buildNow})
	require.NoError(t, err)
	require.Len(t, tr, 3)
	assert.Contains(t, tr[0].Content, "reflective coach", "empty mode uses the coach persona")
	assert.NotContains(t, tr[0].Content, "About the user")
	assert.NotContains(t, tr[0].Content, "People the user writes about")
	assert.Contains(t, tr[1].Content, NoEntriesNotice)
}

func TestBuild_BoundsHistory(t *testing.T) {
	b := NewBuilder(WithLocation(time.UTC), WithHistoryWindow(2))

	in := sampleInput()
	in.History = nil
	for i := 0; i < 6; i++ {
		in.History = append(in.History, types.Message{Role: types.RoleUser, Content: fmt.Sprintf("h%d", i)})
	}

	tr, err := b.Build(in)
	require.NoError(t, err)
	require.Len(t, tr, 5)
	assert.Equal(t, "h4", tr[2].Content)
	assert.Equal(t, "h5", tr[3].Content)
}

func TestBuild_Errors(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(Input{Mode: "pirate", Question: "arr"})
	assert.Error(t, err)

	_, err = b.Build(Input{Question: "   "})
	assert.Error(t, err)
}

func TestBuild_CustomPersona(t *testing.T) {
	b := NewBuilder(WithLocation(time.UTC), WithPersona(types.ModeFriend, func() string { return "custom friend" }))

	in := sampleInput()
	in.Mode = types.ModeFriend
	tr, err := b.Build(in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tr[0].Content, "custom friend\n\n"))
}
