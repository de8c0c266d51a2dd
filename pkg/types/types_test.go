package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		tag     string
		want    Mode
		wantErr bool
	}{
		{"", ModeCoach, false},
		{"  ", ModeCoach, false},
		{"coach", ModeCoach, false},
		{"Therapist", ModeTherapist, false},
		{"productivity", ModeProductivity, false},
		{"friend", ModeFriend, false},
		{"ANALYST", ModeAnalyst, false},
		{"content", ModeContent, false},
		{"pirate", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseMode(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateRange_Validate(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, OpenRange(now).Validate())
	assert.NoError(t, NewDateRange(now.AddDate(0, 0, -1), now).Validate())
	assert.NoError(t, NewDateRange(now, now).Validate())
	assert.ErrorIs(t, NewDateRange(now.Add(time.Hour), now).Validate(), ErrInvalidRange)
}

func TestUserProfile_HasText(t *testing.T) {
	var nilProfile *UserProfile
	assert.False(t, nilProfile.HasText())
	assert.False(t, (&UserProfile{Goals: "   "}).HasText())
	assert.True(t, (&UserProfile{Other: "likes tea"}).HasText())
}

func TestUserProfile_ValidNameMappings(t *testing.T) {
	p := &UserProfile{NameMappings: []NameMapping{
		{Name: "Ana", Description: "sister"},
		{Name: " "},
		{Name: "Joe"},
	}}
	got := p.ValidNameMappings()
	require.Len(t, got, 2)
	assert.Equal(t, "Ana", got[0].Name)
	assert.Equal(t, "Joe", got[1].Name)
}
