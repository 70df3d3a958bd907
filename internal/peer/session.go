// Package peer maintains the control-side link to a display endpoint:
// pairing-code addressing, heartbeat probing and automatic reconnection.
//
// The connection policy lives in Step, a pure transition function over a
// small Session value. The Dialer actor owns the real socket and feeds Step
// with events; tests drive Step directly with no I/O at all.
package peer

import "deckpair/internal/domain"

// IDPrefix namespaces pairing codes so a dialer can never land on an
// unrelated websocket endpoint.
const IDPrefix = "deckpair-overlay-v1-"

// EndpointID is the full endpoint name for a four-digit pairing code.
func EndpointID(code string) string { return IDPrefix + code }

// Session is the connection-policy state. It is a plain value; Step returns
// an updated copy.
type Session struct {
	Status        domain.ConnStatus
	AutoReconnect bool
	LastSeen      int64 // unix ms of the last sign of life from the remote
	LatencyMS     int64
}

// NewSession returns the idle state.
func NewSession() Session {
	return Session{Status: domain.StatusDisconnected}
}

// Event is an input to Step.
type Event interface{ isPeerEvent() }

// ConnectRequested starts pairing and latches auto-reconnect on.
type ConnectRequested struct{}

// Opened reports a successful dial.
type Opened struct{ Now int64 }

// Closed reports the connection dropping for any reason.
type Closed struct{}

// PongReceived reports a heartbeat echo. SentAt is the timestamp carried in
// the original probe.
type PongReceived struct{ SentAt, Now int64 }

// HeartbeatTick fires on the probe interval while the timer runs.
type HeartbeatTick struct{ Now int64 }

// RetryTick fires on the redial interval.
type RetryTick struct{}

// Resumed reports the host process waking from a suspend; a latched session
// redials immediately instead of waiting for the next retry tick.
type Resumed struct{}

// DisconnectRequested is an operator-initiated teardown; it unlatches
// auto-reconnect.
type DisconnectRequested struct{}

func (ConnectRequested) isPeerEvent()    {}
func (Opened) isPeerEvent()              {}
func (Closed) isPeerEvent()              {}
func (PongReceived) isPeerEvent()        {}
func (HeartbeatTick) isPeerEvent()       {}
func (RetryTick) isPeerEvent()           {}
func (Resumed) isPeerEvent()             {}
func (DisconnectRequested) isPeerEvent() {}

// Action is an effect the caller must perform after a Step.
type Action interface{ isPeerAction() }

// Dial opens a fresh connection attempt.
type Dial struct{}

// CloseConn force-closes the current connection.
type CloseConn struct{}

// SendPing writes a heartbeat probe stamped with Now.
type SendPing struct{ Now int64 }

func (Dial) isPeerAction()      {}
func (CloseConn) isPeerAction() {}
func (SendPing) isPeerAction()  {}

// Step applies one event. deadAfterMS is the zombie threshold: a connected
// session with no sign of life for longer than this is force-closed and
// redialed.
func Step(s Session, ev Event, deadAfterMS int64) (Session, []Action) {
	switch ev := ev.(type) {
	case ConnectRequested:
		s.AutoReconnect = true
		if s.Status == domain.StatusConnected {
			return s, nil
		}
		s.Status = domain.StatusConnecting
		return s, []Action{Dial{}}

	case Opened:
		s.Status = domain.StatusConnected
		s.LastSeen = ev.Now
		return s, []Action{SendPing{Now: ev.Now}}

	case Closed:
		// Any transport fault lands in DISCONNECTED and invalidates the
		// latency sample. A latched session redials on the next retry
		// tick, not immediately, so a flapping endpoint cannot spin the
		// dialer.
		s.Status = domain.StatusDisconnected
		s.LatencyMS = 0
		return s, nil

	case PongReceived:
		if s.Status != domain.StatusConnected {
			return s, nil
		}
		s.LastSeen = ev.Now
		if lat := ev.Now - ev.SentAt; lat >= 0 {
			s.LatencyMS = lat
		}
		return s, nil

	case HeartbeatTick:
		if s.Status != domain.StatusConnected {
			return s, nil
		}
		if ev.Now-s.LastSeen > deadAfterMS {
			// Zombie link: the socket looks open but nothing answers.
			s.Status = domain.StatusConnecting
			return s, []Action{CloseConn{}, Dial{}}
		}
		return s, []Action{SendPing{Now: ev.Now}}

	case RetryTick:
		if s.AutoReconnect && s.Status != domain.StatusConnected {
			s.Status = domain.StatusConnecting
			return s, []Action{Dial{}}
		}
		return s, nil

	case Resumed:
		if s.AutoReconnect && s.Status != domain.StatusConnected {
			s.Status = domain.StatusConnecting
			return s, []Action{Dial{}}
		}
		return s, nil

	case DisconnectRequested:
		s.AutoReconnect = false
		closing := s.Status != domain.StatusDisconnected
		s.Status = domain.StatusDisconnected
		if closing {
			return s, []Action{CloseConn{}}
		}
		return s, nil
	}
	return s, nil
}
