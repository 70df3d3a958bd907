package peer

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"deckpair/internal/domain"
	"deckpair/internal/protocol"
)

// GenerateCode returns a four-digit pairing code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("peer: generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}

// Listener is the display side of a pairing. It accepts one control
// connection at a time; a new attach supersedes the old connection.
type Listener struct {
	code string
	cb   Callbacks

	mu      sync.Mutex
	conn    Conn
	gen     int
	writeMu sync.Mutex
}

func NewListener(code string, cb Callbacks) *Listener {
	return &Listener{code: code, cb: cb}
}

func (l *Listener) Code() string { return l.code }

// EndpointID is the path segment a control deck dials to reach this
// listener.
func (l *Listener) EndpointID() string { return EndpointID(l.code) }

// Attach takes ownership of an accepted connection and serves it until it
// drops. It blocks; the HTTP handler calls it from the request goroutine.
func (l *Listener) Attach(conn Conn) {
	l.mu.Lock()
	if l.conn != nil {
		log.Printf("peer: new pairing supersedes active connection")
		l.conn.Close()
	}
	l.conn = conn
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	l.setStatus(domain.StatusConnected)
	log.Printf("peer: control deck paired")

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		l.handleFrame(conn, data)
	}

	l.mu.Lock()
	current := gen == l.gen
	if current {
		l.conn = nil
	}
	l.mu.Unlock()
	if current {
		l.setStatus(domain.StatusDisconnected)
		log.Printf("peer: control deck disconnected")
	}
}

func (l *Listener) handleFrame(conn Conn, data []byte) {
	payload, err := protocol.Decode(data)
	if err != nil {
		log.Printf("peer: dropping frame: %v", err)
		return
	}

	// Heartbeat probes are answered in-place; everything else goes up.
	if ping, ok := payload.(protocol.Ping); ok {
		l.writeTo(conn, protocol.NewPong(ping.Timestamp, time.Now().UnixMilli()))
		return
	}
	if l.cb.OnPayload != nil {
		l.cb.OnPayload(payload)
	}
}

// Send writes one payload to the paired deck. Dropped when unpaired.
func (l *Listener) Send(payload any) {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return
	}
	l.writeTo(conn, payload)
}

func (l *Listener) writeTo(conn Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("peer: marshal: %v", err)
		return
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := conn.WriteMessage(data); err != nil {
		log.Printf("peer: write: %v", err)
	}
}

func (l *Listener) setStatus(st domain.ConnStatus) {
	if l.cb.OnStatus != nil {
		l.cb.OnStatus(st)
	}
}
