package domain

// EventTemplates are the operator-editable message formats for platform
// events; {user} is replaced with the acting username.
type EventTemplates struct {
	Follow string `json:"follow"`
	Sub    string `json:"sub"`
	Raid   string `json:"raid"`
	Cheer  string `json:"cheer"`
}

func DefaultEventTemplates() EventTemplates {
	return EventTemplates{
		Follow: "{user} is now following!",
		Sub:    "{user} just subscribed!",
		Raid:   "Raid incoming from {user}!",
		Cheer:  "{user} cheered bits!",
	}
}

// PlatformConfig holds the chat/REST credentials and polling knobs for the
// streaming platform.
type PlatformConfig struct {
	ClientID            string         `json:"clientId"`
	AccessToken         string         `json:"accessToken"`
	Channel             string         `json:"channel"`
	PollIntervalSeconds int            `json:"pollIntervalSeconds,omitempty"`
	EventTemplates      EventTemplates `json:"eventMessageTemplates"`
}

// DeckConfig is the whole persisted profile: rewritten wholesale on every
// mutation, no partial updates.
type DeckConfig struct {
	SoundButtons   []SoundItem    `json:"soundButtons"`
	PlatformConfig PlatformConfig `json:"platformConfig"`
}

func DefaultDeckConfig() DeckConfig {
	return DeckConfig{
		SoundButtons: DefaultSoundBoard(),
		PlatformConfig: PlatformConfig{
			PollIntervalSeconds: 30,
			EventTemplates:      DefaultEventTemplates(),
		},
	}
}
