// Package poll runs the control-side poll: it owns the authoritative tally
// and turns chat lines into votes.
package poll

import (
	"strconv"
	"strings"
	"sync"

	"deckpair/internal/domain"
)

// Tracker owns at most one active poll. onUpdate receives a snapshot after
// every accepted vote and on start; it may be nil.
type Tracker struct {
	mu       sync.Mutex
	poll     *domain.PollState
	onUpdate func(domain.PollState)
}

func NewTracker(onUpdate func(domain.PollState)) *Tracker {
	return &Tracker{onUpdate: onUpdate}
}

// Start opens a new poll, replacing any active one. Options vote by typing
// their one-based position in chat.
func (t *Tracker) Start(question string, labels []string) domain.PollState {
	options := make([]domain.PollOption, len(labels))
	for i, label := range labels {
		options[i] = domain.PollOption{
			ID:      strconv.Itoa(i),
			Label:   label,
			Trigger: strconv.Itoa(i + 1),
		}
	}
	state := domain.PollState{Active: true, Question: question, Options: options}

	t.mu.Lock()
	t.poll = &state
	snap := state.Clone()
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(snap)
	}
	return snap
}

// CastVote matches one chat message against the active poll's triggers and
// counts the first matching option. Returns false when nothing matched or no
// poll is running.
func (t *Tracker) CastVote(message string) bool {
	t.mu.Lock()
	if t.poll == nil || !t.poll.Active {
		t.mu.Unlock()
		return false
	}
	matched := false
	for i := range t.poll.Options {
		if matchTrigger(t.poll.Options[i].Trigger, message) {
			t.poll.Options[i].Votes++
			t.poll.TotalVotes++
			matched = true
			break
		}
	}
	var snap domain.PollState
	if matched {
		snap = t.poll.Clone()
	}
	t.mu.Unlock()

	if matched && t.onUpdate != nil {
		t.onUpdate(snap)
	}
	return matched
}

// React reports whether an option id belongs to the active poll, so cosmetic
// cues are only sent for real options.
func (t *Tracker) React(optionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poll == nil || !t.poll.Active {
		return false
	}
	for _, o := range t.poll.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Current returns a snapshot of the active poll.
func (t *Tracker) Current() (domain.PollState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poll == nil {
		return domain.PollState{}, false
	}
	return t.poll.Clone(), true
}

// End closes the active poll and stamps the winner: the option with the most
// votes, earliest position on a tie. Returns false when no poll is running.
func (t *Tracker) End() (domain.PollState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poll == nil || !t.poll.Active {
		return domain.PollState{}, false
	}
	t.poll.Active = false
	if len(t.poll.Options) > 0 {
		winner := 0
		for i, o := range t.poll.Options {
			if o.Votes > t.poll.Options[winner].Votes {
				winner = i
			}
		}
		t.poll.WinnerID = t.poll.Options[winner].ID
	}
	final := t.poll.Clone()
	t.poll = nil
	return final, true
}

// matchTrigger compares a chat message against one trigger: trimmed,
// case-insensitive, whole-message. Trigger "1" additionally matches any
// message containing a "1", which keeps quick votes like "option 1" working.
func matchTrigger(trigger, message string) bool {
	if strings.EqualFold(strings.TrimSpace(message), trigger) {
		return true
	}
	return trigger == "1" && strings.Contains(message, "1")
}
