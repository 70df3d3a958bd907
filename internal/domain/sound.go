package domain

// SoundItem describes one button on the deck: what it triggers on the
// display surface and how the alert is styled.
type SoundItem struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Color     string         `json:"color"`
	TextColor string         `json:"textColor,omitempty"`
	Type      string         `json:"type"`
	IconName  string         `json:"iconName"`
	SoundURL  string         `json:"soundUrl,omitempty"`
	Preset    string         `json:"soundPreset,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
	FontStyle FontStyle      `json:"fontStyle,omitempty"`
	Animation AnimationStyle `json:"animation,omitempty"`
}

// DefaultSoundBoard is the seed button set for a fresh profile. The display
// side also uses it as the fallback lookup for known sfx ids.
func DefaultSoundBoard() []SoundItem {
	return []SoundItem{
		{ID: "hype", Label: "HYPE", Color: "bg-purple-600", Type: "purple", IconName: "Zap", Preset: "scifi-warp", FontStyle: FontSciFi, Animation: AnimationPulse},
		{ID: "fail", Label: "FAIL", Color: "bg-red-600", Type: "danger", IconName: "ThumbsDown", Preset: "fun-fail", FontStyle: FontComic, Animation: AnimationShake},
		{ID: "gg", Label: "GG", Color: "bg-green-600", Type: "success", IconName: "Trophy", Preset: "ui-success", FontStyle: FontRetro, Animation: AnimationBounce},
		{ID: "wow", Label: "WOW", Color: "bg-yellow-500", Type: "warning", IconName: "Star", Preset: "fun-wow", FontStyle: FontComic, Animation: AnimationSpin},
		{ID: "lol", Label: "LUL", Color: "bg-blue-500", Type: "info", IconName: "Laugh", Preset: "ui-pop", Animation: AnimationBounce},
		{ID: "alert", Label: "ALERT", Color: "bg-red-800", Type: "danger", IconName: "Siren", Preset: "scifi-alarm", FontStyle: FontHorror, Animation: AnimationFlash},
	}
}

// FindSound returns the item with the given id, or nil.
func FindSound(items []SoundItem, id string) *SoundItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}
