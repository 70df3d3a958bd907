package domain

// PollOption is one choice in a chat poll. Trigger is the literal keyword a
// viewer types in chat to cast a vote for it.
type PollOption struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Trigger string `json:"trigger"`
	Votes   int    `json:"votes"`
}

// PollState is the whole poll as owned by the sender and mirrored wholesale
// on the receiver. At most one poll is active per session.
type PollState struct {
	Active     bool         `json:"isActive"`
	Question   string       `json:"question"`
	Options    []PollOption `json:"options"`
	TotalVotes int          `json:"totalVotes"`
	WinnerID   string       `json:"winnerId,omitempty"`
}

// Clone returns a deep copy so the receiver side can replace its state
// without sharing option slices with the sender.
func (p PollState) Clone() PollState {
	out := p
	out.Options = make([]PollOption, len(p.Options))
	copy(out.Options, p.Options)
	return out
}
