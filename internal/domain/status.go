package domain

// ConnStatus is the lifecycle state shared by the chat session and the peer
// session. Every transport fault resolves to one of these; nothing surfaces
// as a crash.
type ConnStatus string

const (
	StatusDisconnected ConnStatus = "DISCONNECTED"
	StatusConnecting   ConnStatus = "CONNECTING"
	StatusConnected    ConnStatus = "CONNECTED"
)
