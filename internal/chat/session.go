package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"deckpair/internal/domain"
)

// DefaultGatewayURL is the production IRC-over-websocket gateway.
const DefaultGatewayURL = "wss://irc-ws.chat.twitch.tv:443"

type LogKind string

const (
	LogIn    LogKind = "in"
	LogOut   LogKind = "out"
	LogInfo  LogKind = "info"
	LogError LogKind = "error"
)

// LogEntry is one line of session traffic surfaced to the operator's
// debug console.
type LogEntry struct {
	Kind LogKind `json:"kind"`
	Text string  `json:"text"`
	At   int64   `json:"at"` // unix ms
}

// Credentials identify the account and channel for one chat session.
// Token may be given with or without the "oauth:" prefix.
type Credentials struct {
	Username string
	Token    string
	Channel  string
}

// Callbacks receive session output. Nil callbacks are skipped. They are
// invoked from the session's read goroutine and must not block.
type Callbacks struct {
	OnMessage func(domain.ChatMessage)
	OnEvent   func(domain.StreamEvent)
	OnLog     func(LogEntry)
	OnStatus  func(domain.ConnStatus)
}

// Session is a single connection to the chat gateway. Connect may be called
// again after a disconnect; a new connection supersedes the old one.
type Session struct {
	url string
	cb  Callbacks

	mu      sync.Mutex
	conn    *websocket.Conn
	status  domain.ConnStatus
	gen     int
	channel string

	writeMu sync.Mutex
}

func NewSession(url string, cb Callbacks) *Session {
	if url == "" {
		url = DefaultGatewayURL
	}
	return &Session{url: url, cb: cb, status: domain.StatusDisconnected}
}

func (s *Session) Status() domain.ConnStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect dials the gateway, performs the login handshake and joins the
// channel. On success a read goroutine runs until the connection drops or
// Disconnect is called.
func (s *Session) Connect(ctx context.Context, creds Credentials) error {
	channel := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(creds.Channel), "#"))
	if channel == "" {
		return fmt.Errorf("chat: connect: channel is required")
	}
	token := creds.Token
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	username := strings.ToLower(strings.TrimSpace(creds.Username))
	if username == "" {
		// Anonymous read-only login accepted by the gateway.
		username = fmt.Sprintf("justinfan%d", 10000+time.Now().UnixNano()%90000)
	}

	s.setStatus(domain.StatusConnecting)
	s.logf(LogInfo, "connecting to %s", s.url)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.setStatus(domain.StatusDisconnected)
		return fmt.Errorf("chat: connect: %w", err)
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.gen++
	gen := s.gen
	s.channel = channel
	s.mu.Unlock()

	s.sendRaw(conn, "PASS "+token, "PASS oauth:****")
	s.sendRaw(conn, "NICK "+username, "")
	s.sendRaw(conn, "CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership", "")
	s.sendRaw(conn, "JOIN #"+channel, "")

	s.setStatus(domain.StatusConnected)
	log.Printf("chat: connected to #%s as %s", channel, username)

	go s.readLoop(conn, gen)
	return nil
}

// SendMessage posts a line to the joined channel. It is dropped silently
// when the session is not connected.
func (s *Session) SendMessage(text string) {
	s.mu.Lock()
	conn, channel := s.conn, s.channel
	connected := s.status == domain.StatusConnected
	s.mu.Unlock()
	if !connected || conn == nil {
		s.logf(LogError, "send dropped, not connected")
		return
	}
	s.sendRaw(conn, "PRIVMSG #"+channel+" :"+text, "")
}

// Disconnect closes the connection. The read loop notices the close and
// finishes on its own.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	s.setStatus(domain.StatusDisconnected)
	log.Printf("chat: disconnected")
}

func (s *Session) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stale := gen != s.gen || s.conn != conn
			if !stale {
				s.conn = nil
			}
			s.mu.Unlock()
			if !stale {
				s.logf(LogError, "read: %v", err)
				s.setStatus(domain.StatusDisconnected)
			}
			return
		}
		for _, line := range strings.Split(string(data), "\r\n") {
			if line == "" {
				continue
			}
			s.handleLine(conn, line)
		}
	}
}

func (s *Session) handleLine(conn *websocket.Conn, line string) {
	// Gateway keepalive, answered without surfacing to the log.
	if strings.HasPrefix(line, "PING") {
		s.sendRaw(conn, "PONG :tmi.twitch.tv", "PONG")
		return
	}

	s.emitLog(LogEntry{Kind: LogIn, Text: line, At: time.Now().UnixMilli()})

	if strings.Contains(line, "Login authentication failed") {
		log.Printf("chat: login authentication failed")
		s.logf(LogError, "login authentication failed")
		s.setStatus(domain.StatusDisconnected)
		return
	}

	if msg, ok := ParseMessage(line); ok {
		if s.cb.OnMessage != nil {
			s.cb.OnMessage(msg)
		}
		return
	}
	if ev, ok := ParseEvent(line); ok {
		if s.cb.OnEvent != nil {
			s.cb.OnEvent(ev)
		}
	}
}

// sendRaw writes one IRC line. logAs replaces the line in the debug log when
// it must be masked; empty means log verbatim, "PONG" suppresses logging.
func (s *Session) sendRaw(conn *websocket.Conn, line, logAs string) {
	s.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, []byte(line))
	s.writeMu.Unlock()
	if err != nil {
		s.logf(LogError, "write: %v", err)
		return
	}
	if logAs == "PONG" {
		return
	}
	if logAs == "" {
		logAs = line
	}
	s.emitLog(LogEntry{Kind: LogOut, Text: logAs, At: time.Now().UnixMilli()})
}

func (s *Session) setStatus(st domain.ConnStatus) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()
	if changed && s.cb.OnStatus != nil {
		s.cb.OnStatus(st)
	}
}

func (s *Session) logf(kind LogKind, format string, args ...any) {
	s.emitLog(LogEntry{Kind: kind, Text: fmt.Sprintf(format, args...), At: time.Now().UnixMilli()})
}

func (s *Session) emitLog(e LogEntry) {
	if s.cb.OnLog != nil {
		s.cb.OnLog(e)
	}
}
