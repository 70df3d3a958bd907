// Package protocol defines the JSON payloads exchanged over the peer
// channel between the deck (control role) and the overlay (display role).
// Every payload is a tagged object; the tag lives in the "type" field.
package protocol

import (
	"encoding/json"
	"fmt"

	"deckpair/internal/domain"
)

const (
	TypeTriggerSFX   = "TRIGGER_SFX"
	TypeShowChatMsg  = "SHOW_CHAT_MSG"
	TypePollUpdate   = "POLL_UPDATE"
	TypePollEnd      = "POLL_END"
	TypePollReaction = "POLL_REACTION"
	TypePing         = "PING"
	TypePong         = "PONG"
)

// TriggerSFX fires an sfx alert on the overlay. Style fields are overrides;
// the overlay falls back to its known-sound lookup, then to defaults.
type TriggerSFX struct {
	Type        string                `json:"type"`
	SfxID       string                `json:"sfxId"`
	CustomImage string                `json:"customImage,omitempty"`
	CustomLabel string                `json:"customLabel,omitempty"`
	CustomSound string                `json:"customSound,omitempty"`
	SoundPreset string                `json:"soundPreset,omitempty"`
	FontStyle   domain.FontStyle      `json:"fontStyle,omitempty"`
	Animation   domain.AnimationStyle `json:"animation,omitempty"`
	Color       string                `json:"color,omitempty"`
	TextColor   string                `json:"textColor,omitempty"`
}

// TriggerFromSound builds the trigger payload for one deck button.
func TriggerFromSound(btn domain.SoundItem) TriggerSFX {
	return TriggerSFX{
		Type:        TypeTriggerSFX,
		SfxID:       btn.ID,
		CustomImage: btn.ImageURL,
		CustomLabel: btn.Label,
		CustomSound: btn.SoundURL,
		SoundPreset: btn.Preset,
		FontStyle:   btn.FontStyle,
		Animation:   btn.Animation,
		Color:       btn.Color,
		TextColor:   btn.TextColor,
	}
}

// ShowChatMsg spotlights one chat message on the overlay.
type ShowChatMsg struct {
	Type string             `json:"type"`
	Msg  domain.ChatMessage `json:"msg"`
}

func NewShowChatMsg(msg domain.ChatMessage) ShowChatMsg {
	return ShowChatMsg{Type: TypeShowChatMsg, Msg: msg}
}

// PollUpdate replaces the overlay's poll state wholesale; the deck is the
// single source of truth.
type PollUpdate struct {
	Type string           `json:"type"`
	Poll domain.PollState `json:"poll"`
}

func NewPollUpdate(poll domain.PollState) PollUpdate {
	return PollUpdate{Type: TypePollUpdate, Poll: poll}
}

// PollEnd carries the final poll so the overlay can show results during the
// removal grace period.
type PollEnd struct {
	Type string           `json:"type"`
	Poll domain.PollState `json:"poll"`
}

func NewPollEnd(poll domain.PollState) PollEnd {
	return PollEnd{Type: TypePollEnd, Poll: poll}
}

const (
	ReactionUp   = "up"
	ReactionDown = "down"
)

// PollReaction is a transient cosmetic cue on one poll option. It never
// adjusts vote counts.
type PollReaction struct {
	Type     string `json:"type"`
	OptionID string `json:"optionId"`
	Reaction string `json:"reaction"`
}

func NewPollReaction(optionID, reaction string) PollReaction {
	return PollReaction{Type: TypePollReaction, OptionID: optionID, Reaction: reaction}
}

// Ping is the control-role heartbeat probe. Timestamp is the sender's clock
// in unix ms and is echoed back verbatim in the Pong.
type Ping struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func NewPing(now int64) Ping {
	return Ping{Type: TypePing, Timestamp: now}
}

// Pong answers a Ping. Timestamp echoes the probe; ServerTime is the display
// role's own clock.
type Pong struct {
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
	ServerTime int64  `json:"serverTime"`
}

func NewPong(echoed, serverTime int64) Pong {
	return Pong{Type: TypePong, Timestamp: echoed, ServerTime: serverTime}
}

// Decode parses a peer-channel frame into one of the payload structs above.
// Unknown tags are an error the caller is expected to log and drop.
func Decode(data []byte) (any, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("protocol: bad frame: %w", err)
	}

	switch head.Type {
	case TypeTriggerSFX:
		var p TriggerSFX
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", head.Type, err)
		}
		return p, nil
	case TypeShowChatMsg:
		var p ShowChatMsg
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", head.Type, err)
		}
		return p, nil
	case TypePollUpdate:
		var p PollUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", head.Type, err)
		}
		return p, nil
	case TypePollEnd:
		var p PollEnd
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", head.Type, err)
		}
		return p, nil
	case TypePollReaction:
		var p PollReaction
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", head.Type, err)
		}
		return p, nil
	case TypePing:
		var p Ping
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", head.Type, err)
		}
		return p, nil
	case TypePong:
		var p Pong
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("protocol: %s: %w", head.Type, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("protocol: unknown payload type %q", head.Type)
	}
}
