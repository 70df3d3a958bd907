package twitchinfra

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"deckpair/internal/domain"
)

func TestRenderTemplate(t *testing.T) {
	assert.Equal(t, "Thanks Ana!", RenderTemplate("Thanks {user}!", "Ana"))
	assert.Equal(t, "no placeholder", RenderTemplate("no placeholder", "Ana"))
	assert.Equal(t, "Ana and Ana", RenderTemplate("{user} and {user}", "Ana"))
}

func TestNoteFollowerDedupe(t *testing.T) {
	var events []domain.StreamEvent
	p := NewPoller(nil, "chan", "123", 0, "New follower: {user}", PollerCallbacks{
		OnFollower: func(e domain.StreamEvent) { events = append(events, e) },
	})

	// First sample primes the baseline without announcing.
	p.noteFollower("OldFollower")
	assert.Empty(t, events)

	p.noteFollower("OldFollower")
	assert.Empty(t, events)

	p.noteFollower("Fresh")
	assert.Len(t, events, 1)
	assert.Equal(t, domain.EventFollow, events[0].Kind)
	assert.Equal(t, "Fresh", events[0].Username)
	assert.Equal(t, "New follower: Fresh", events[0].Details)

	// Empty samples (offline API hiccup shape) announce nothing.
	p.noteFollower("")
	assert.Len(t, events, 1)

	p.noteFollower("Fresh")
	assert.Len(t, events, 1)
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(nil, "chan", "", 0, "", PollerCallbacks{})
	assert.Equal(t, domain.DefaultEventTemplates().Follow, p.template)
	assert.Greater(t, p.interval.Seconds(), 0.0)
}
