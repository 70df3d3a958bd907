package domain

type TokenKind string

const (
	TokenText  TokenKind = "text"
	TokenEmote TokenKind = "emote"
)

// MessageToken is one run of a chat message: either plain text or a single
// emote with its CDN image URL.
type MessageToken struct {
	Kind    TokenKind `json:"type"`
	Content string    `json:"content"`
	URL     string    `json:"url,omitempty"`
}

// ChatMessage is a parsed channel message. The parser fills every field;
// only Read is mutated afterwards (by the operator UI).
type ChatMessage struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Text      string         `json:"message"`
	Tokens    []MessageToken `json:"tokens"`
	Color     string         `json:"color,omitempty"`
	Timestamp int64          `json:"timestamp"` // unix ms
	Read      bool           `json:"read"`
}

type EventKind string

const (
	EventFollow EventKind = "FOLLOW"
	EventSub    EventKind = "SUB"
	EventRaid   EventKind = "RAID"
	EventCheer  EventKind = "CHEER"
)

// StreamEvent is a platform event (follow, sub, raid, cheer) surfaced to the
// operator. Seen is toggled when the operator acknowledges it.
type StreamEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"type"`
	Username  string    `json:"username"`
	Details   string    `json:"details,omitempty"`
	Timestamp int64     `json:"timestamp"` // unix ms
	Seen      bool      `json:"seen"`
}
