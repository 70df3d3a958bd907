package poll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckpair/internal/domain"
)

func TestStartAssignsIDsAndTriggers(t *testing.T) {
	tr := NewTracker(nil)
	state := tr.Start("best map?", []string{"Dust", "Mirage", "Inferno"})

	assert.True(t, state.Active)
	assert.Equal(t, "best map?", state.Question)
	require.Len(t, state.Options, 3)
	assert.Equal(t, "Mirage", state.Options[1].Label)
	assert.Equal(t, "0", state.Options[0].ID)
	assert.Equal(t, "1", state.Options[0].Trigger)
	assert.Equal(t, "2", state.Options[2].ID)
	assert.Equal(t, "3", state.Options[2].Trigger)
}

func TestMatchTrigger(t *testing.T) {
	tests := []struct {
		trigger, message string
		want             bool
	}{
		{"2", "2", true},
		{"2", "  2  ", true},
		{"2", "22", false},
		{"2", "vote 2", false},
		{"abc", "ABC", true},
		// Trigger "1" keeps its loose containment match.
		{"1", "1", true},
		{"1", "option 1 please", true},
		{"1", "100%", true},
		{"1", "two", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchTrigger(tt.trigger, tt.message),
			"trigger %q vs message %q", tt.trigger, tt.message)
	}
}

func TestCastVoteFirstMatchWins(t *testing.T) {
	var updates []domain.PollState
	tr := NewTracker(func(s domain.PollState) { updates = append(updates, s) })
	tr.Start("q", []string{"A", "B"})

	// "1" is both option one's exact trigger and a containment match; only
	// option one is counted.
	require.True(t, tr.CastVote("1"))
	require.True(t, tr.CastVote("2"))
	require.False(t, tr.CastVote("nope"))

	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, 1, cur.Options[0].Votes)
	assert.Equal(t, 1, cur.Options[1].Votes)
	assert.Equal(t, 2, cur.TotalVotes)

	// Start plus two accepted votes; the rejected one publishes nothing.
	assert.Len(t, updates, 3)
}

func TestCastVoteWithoutActivePoll(t *testing.T) {
	tr := NewTracker(nil)
	assert.False(t, tr.CastVote("1"))
}

func TestEndPicksWinner(t *testing.T) {
	tr := NewTracker(nil)
	tr.Start("q", []string{"A", "B", "C"})
	tr.CastVote("2")
	tr.CastVote("2")
	tr.CastVote("3")

	final, ok := tr.End()
	require.True(t, ok)
	assert.False(t, final.Active)
	assert.Equal(t, "1", final.WinnerID)
	assert.Equal(t, 3, final.TotalVotes)

	_, ok = tr.Current()
	assert.False(t, ok, "ended poll must be cleared")
	_, ok = tr.End()
	assert.False(t, ok, "double end")
}

func TestEndTieGoesToEarliestOption(t *testing.T) {
	tr := NewTracker(nil)
	tr.Start("q", []string{"A", "B"})
	tr.CastVote("1")
	tr.CastVote("2")

	final, ok := tr.End()
	require.True(t, ok)
	assert.Equal(t, "0", final.WinnerID)
}

func TestEndZeroVotes(t *testing.T) {
	tr := NewTracker(nil)
	tr.Start("q", []string{"A", "B"})

	final, ok := tr.End()
	require.True(t, ok)
	assert.Equal(t, "0", final.WinnerID)
	assert.Equal(t, 0, final.TotalVotes)
}

func TestReactValidatesOption(t *testing.T) {
	tr := NewTracker(nil)
	assert.False(t, tr.React("0"), "no poll running")

	tr.Start("q", []string{"A"})
	assert.True(t, tr.React("0"))
	assert.False(t, tr.React("5"))
}

func TestStartReplacesActivePoll(t *testing.T) {
	tr := NewTracker(nil)
	tr.Start("old", []string{"A"})
	tr.CastVote("1")

	state := tr.Start("new", []string{"X", "Y"})
	assert.Equal(t, "new", state.Question)
	assert.Equal(t, 0, state.TotalVotes)
	require.Len(t, state.Options, 2)
}
