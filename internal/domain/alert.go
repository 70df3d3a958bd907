package domain

type FontStyle string

const (
	FontStandard    FontStyle = "standard"
	FontRetro       FontStyle = "retro"
	FontSciFi       FontStyle = "scifi"
	FontComic       FontStyle = "comic"
	FontHorror      FontStyle = "horror"
	FontHandwritten FontStyle = "handwritten"
)

type AnimationStyle string

const (
	AnimationNone   AnimationStyle = "none"
	AnimationBounce AnimationStyle = "bounce"
	AnimationShake  AnimationStyle = "shake"
	AnimationPulse  AnimationStyle = "pulse"
	AnimationGlitch AnimationStyle = "glitch"
	AnimationSpin   AnimationStyle = "spin"
	AnimationFlash  AnimationStyle = "flash"
)

type AlertKind string

const (
	AlertSFX  AlertKind = "sfx"
	AlertChat AlertKind = "chat"
)

// ActiveAlert is the single full-screen cue currently shown on the display
// surface. The sfx variant carries its own label and styling; the chat
// variant spotlights one chat message.
type ActiveAlert struct {
	Kind        AlertKind      `json:"type"`
	Label       string         `json:"label,omitempty"`
	Image       string         `json:"image,omitempty"`
	FontStyle   FontStyle      `json:"fontStyle,omitempty"`
	Animation   AnimationStyle `json:"animation,omitempty"`
	Color       string         `json:"color,omitempty"`
	TextColor   string         `json:"textColor,omitempty"`
	Sound       string         `json:"sound,omitempty"`
	SoundPreset string         `json:"soundPreset,omitempty"`
	ChatMsg     *ChatMessage   `json:"chatMsg,omitempty"`
}
