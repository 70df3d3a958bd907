// Package overlay holds the display-side view state: the single alert slot,
// the poll panel and transient reaction cues. Payloads from the paired deck
// mutate the state; every mutation pushes a fresh View snapshot to the
// renderer.
package overlay

import (
	"sync"
	"time"

	"deckpair/internal/domain"
	"deckpair/internal/protocol"
)

// Timeouts are the display dwell times. Zero values fall back to defaults.
type Timeouts struct {
	SfxAlert    time.Duration
	ChatAlert   time.Duration
	PollRemoval time.Duration
	Reaction    time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.SfxAlert <= 0 {
		t.SfxAlert = 3 * time.Second
	}
	if t.ChatAlert <= 0 {
		t.ChatAlert = 10 * time.Second
	}
	if t.PollRemoval <= 0 {
		t.PollRemoval = 5 * time.Second
	}
	if t.Reaction <= 0 {
		t.Reaction = 3 * time.Second
	}
	return t
}

// View is one immutable snapshot of everything the renderer draws.
type View struct {
	Alert     *domain.ActiveAlert `json:"alert,omitempty"`
	Poll      *domain.PollState   `json:"poll,omitempty"`
	Reactions map[string]string   `json:"reactions,omitempty"` // option id -> up/down
}

// State applies deck payloads and expires slots on their timers. onChange
// runs outside the lock with a snapshot; it may be nil.
type State struct {
	timeouts Timeouts
	sounds   []domain.SoundItem
	onChange func(View)

	mu          sync.Mutex
	alert       *domain.ActiveAlert
	alertGen    int
	poll        *domain.PollState
	pollGen     int
	reactions   map[string]string
	reactionGen map[string]int
}

// NewState builds a receiver. sounds is the known-button catalogue used to
// fill styling the deck omitted from a trigger.
func NewState(timeouts Timeouts, sounds []domain.SoundItem, onChange func(View)) *State {
	return &State{
		timeouts:    timeouts.withDefaults(),
		sounds:      sounds,
		onChange:    onChange,
		reactions:   map[string]string{},
		reactionGen: map[string]int{},
	}
}

// Apply dispatches one decoded peer payload. Unknown payloads are ignored.
func (s *State) Apply(payload any) {
	switch p := payload.(type) {
	case protocol.TriggerSFX:
		s.showSfx(p)
	case protocol.ShowChatMsg:
		s.showChat(p.Msg)
	case protocol.PollUpdate:
		s.updatePoll(p.Poll)
	case protocol.PollEnd:
		s.endPoll(p.Poll)
	case protocol.PollReaction:
		s.showReaction(p.OptionID, p.Reaction)
	}
}

// View returns the current snapshot.
func (s *State) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) showSfx(p protocol.TriggerSFX) {
	alert := domain.ActiveAlert{
		Kind:        domain.AlertSFX,
		Label:       p.CustomLabel,
		Image:       p.CustomImage,
		FontStyle:   p.FontStyle,
		Animation:   p.Animation,
		Color:       p.Color,
		TextColor:   p.TextColor,
		Sound:       p.CustomSound,
		SoundPreset: p.SoundPreset,
	}

	// Fill gaps from the local button catalogue, then hard defaults.
	if known := domain.FindSound(s.sounds, p.SfxID); known != nil {
		if alert.Label == "" {
			alert.Label = known.Label
		}
		if alert.Image == "" {
			alert.Image = known.ImageURL
		}
		if alert.FontStyle == "" {
			alert.FontStyle = known.FontStyle
		}
		if alert.Animation == "" {
			alert.Animation = known.Animation
		}
		if alert.Color == "" {
			alert.Color = known.Color
		}
		if alert.TextColor == "" {
			alert.TextColor = known.TextColor
		}
		if alert.Sound == "" {
			alert.Sound = known.SoundURL
		}
		if alert.SoundPreset == "" {
			alert.SoundPreset = known.Preset
		}
	}
	if alert.Label == "" {
		alert.Label = "ALERT"
	}
	if alert.FontStyle == "" {
		alert.FontStyle = domain.FontStandard
	}
	if alert.Animation == "" {
		alert.Animation = domain.AnimationBounce
	}
	if alert.Color == "" {
		alert.Color = "bg-purple-600"
	}

	s.setAlert(alert, s.timeouts.SfxAlert)
}

func (s *State) showChat(msg domain.ChatMessage) {
	s.setAlert(domain.ActiveAlert{Kind: domain.AlertChat, ChatMsg: &msg}, s.timeouts.ChatAlert)
}

// setAlert replaces the single alert slot. Last write wins: the generation
// bump disarms any pending expiry from the previous alert.
func (s *State) setAlert(alert domain.ActiveAlert, dwell time.Duration) {
	s.mu.Lock()
	s.alert = &alert
	s.alertGen++
	gen := s.alertGen
	view := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(view)

	time.AfterFunc(dwell, func() {
		s.mu.Lock()
		if s.alertGen != gen {
			s.mu.Unlock()
			return
		}
		s.alert = nil
		view := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(view)
	})
}

// updatePoll replaces the poll panel wholesale; the deck owns the state. It
// also cancels a pending end-of-poll removal, so a new round starting inside
// the grace window keeps the panel up.
func (s *State) updatePoll(poll domain.PollState) {
	cloned := poll.Clone()
	s.mu.Lock()
	s.poll = &cloned
	s.pollGen++
	view := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(view)
}

// endPoll shows the final tally, then removes the panel after the grace
// period unless a newer update supersedes it.
func (s *State) endPoll(poll domain.PollState) {
	cloned := poll.Clone()
	// Ending is decided here, not by the sender's flag.
	cloned.Active = false
	s.mu.Lock()
	s.poll = &cloned
	s.pollGen++
	gen := s.pollGen
	view := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(view)

	time.AfterFunc(s.timeouts.PollRemoval, func() {
		s.mu.Lock()
		if s.pollGen != gen {
			s.mu.Unlock()
			return
		}
		s.poll = nil
		view := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(view)
	})
}

// showReaction sets a transient cue on one option. A repeat on the same
// option restarts its clock; other options are untouched.
func (s *State) showReaction(optionID, reaction string) {
	s.mu.Lock()
	s.reactions[optionID] = reaction
	s.reactionGen[optionID]++
	gen := s.reactionGen[optionID]
	view := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(view)

	time.AfterFunc(s.timeouts.Reaction, func() {
		s.mu.Lock()
		if s.reactionGen[optionID] != gen {
			s.mu.Unlock()
			return
		}
		delete(s.reactions, optionID)
		view := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(view)
	})
}

func (s *State) snapshotLocked() View {
	v := View{}
	if s.alert != nil {
		a := *s.alert
		v.Alert = &a
	}
	if s.poll != nil {
		p := s.poll.Clone()
		v.Poll = &p
	}
	if len(s.reactions) > 0 {
		v.Reactions = make(map[string]string, len(s.reactions))
		for k, val := range s.reactions {
			v.Reactions[k] = val
		}
	}
	return v
}

func (s *State) notify(v View) {
	if s.onChange != nil {
		s.onChange(v)
	}
}
