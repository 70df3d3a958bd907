package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"deckpair/internal/domain"
)

// fakeGateway is an in-process IRC-over-websocket server. Inbound lines land
// on received; frames pushed to send are written to the client.
type fakeGateway struct {
	srv      *httptest.Server
	received chan string
	send     chan string
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		received: make(chan string, 32),
		send:     make(chan string, 32),
	}
	upgrader := websocket.Upgrader{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			for line := range g.send {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
					return
				}
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			g.received <- string(data)
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func expectNoValue[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionHandshake(t *testing.T) {
	g := newFakeGateway(t)
	logs := make(chan LogEntry, 32)

	s := NewSession(g.url(), Callbacks{
		OnLog: func(e LogEntry) { logs <- e },
	})
	err := s.Connect(context.Background(), Credentials{
		Username: "SomeBot",
		Token:    "secrettoken",
		Channel:  "#MyChannel",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	want := []string{
		"PASS oauth:secrettoken",
		"NICK somebot",
		"CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership",
		"JOIN #mychannel",
	}
	for _, w := range want {
		got := waitFor(t, g.received, "handshake line")
		if got != w {
			t.Fatalf("handshake line = %q, want %q", got, w)
		}
	}

	// The raw token must never reach the debug log.
	for i := 0; i < 4; i++ {
		e := waitFor(t, logs, "outbound log")
		if strings.Contains(e.Text, "secrettoken") {
			t.Fatalf("token leaked into log: %q", e.Text)
		}
	}
}

func TestSessionDispatchesMessagesAndEvents(t *testing.T) {
	g := newFakeGateway(t)
	msgs := make(chan domain.ChatMessage, 8)
	events := make(chan domain.StreamEvent, 8)

	s := NewSession(g.url(), Callbacks{
		OnMessage: func(m domain.ChatMessage) { msgs <- m },
		OnEvent:   func(e domain.StreamEvent) { events <- e },
	})
	if err := s.Connect(context.Background(), Credentials{Username: "b", Token: "t", Channel: "c"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	g.send <- "@display-name=Viewer;id=m1;tmi-sent-ts=10 :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #c :hello\r\n@msg-id=raid;display-name=Raider :tmi.twitch.tv USERNOTICE #c"

	m := waitFor(t, msgs, "chat message")
	if m.Username != "Viewer" || m.Text != "hello" {
		t.Fatalf("unexpected message: %+v", m)
	}
	ev := waitFor(t, events, "stream event")
	if ev.Kind != domain.EventRaid || ev.Username != "Raider" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSessionAnswersGatewayPing(t *testing.T) {
	g := newFakeGateway(t)
	logs := make(chan LogEntry, 32)

	s := NewSession(g.url(), Callbacks{
		OnLog: func(e LogEntry) { logs <- e },
	})
	if err := s.Connect(context.Background(), Credentials{Username: "b", Token: "t", Channel: "c"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	// Drain handshake traffic.
	for i := 0; i < 4; i++ {
		waitFor(t, g.received, "handshake line")
	}

	g.send <- "PING :tmi.twitch.tv"
	if got := waitFor(t, g.received, "pong"); got != "PONG :tmi.twitch.tv" {
		t.Fatalf("reply = %q, want PONG", got)
	}

	// Keepalive traffic stays out of the debug log.
	for {
		select {
		case e := <-logs:
			if strings.Contains(e.Text, "PING") || e.Text == "PONG" {
				t.Fatalf("keepalive leaked into log: %+v", e)
			}
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func TestSessionAuthFailureMarksDisconnected(t *testing.T) {
	g := newFakeGateway(t)
	statuses := make(chan domain.ConnStatus, 8)

	s := NewSession(g.url(), Callbacks{
		OnStatus: func(st domain.ConnStatus) { statuses <- st },
	})
	if err := s.Connect(context.Background(), Credentials{Username: "b", Token: "bad", Channel: "c"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	if st := waitFor(t, statuses, "status"); st != domain.StatusConnecting {
		t.Fatalf("status = %v, want CONNECTING", st)
	}
	if st := waitFor(t, statuses, "status"); st != domain.StatusConnected {
		t.Fatalf("status = %v, want CONNECTED", st)
	}

	g.send <- ":tmi.twitch.tv NOTICE * :Login authentication failed"
	if st := waitFor(t, statuses, "status"); st != domain.StatusDisconnected {
		t.Fatalf("status = %v, want DISCONNECTED", st)
	}
}

func TestSendMessageDroppedWhenDisconnected(t *testing.T) {
	g := newFakeGateway(t)

	s := NewSession(g.url(), Callbacks{})
	s.SendMessage("into the void")
	expectNoValue(t, g.received, "frame while disconnected")

	if err := s.Connect(context.Background(), Credentials{Username: "b", Token: "t", Channel: "c"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	for i := 0; i < 4; i++ {
		waitFor(t, g.received, "handshake line")
	}

	s.SendMessage("hello chat")
	if got := waitFor(t, g.received, "sent message"); got != "PRIVMSG #c :hello chat" {
		t.Fatalf("frame = %q", got)
	}
}

func TestConnectRequiresChannel(t *testing.T) {
	s := NewSession("ws://unused", Callbacks{})
	if err := s.Connect(context.Background(), Credentials{Username: "b", Token: "t"}); err == nil {
		t.Fatal("expected error for missing channel")
	}
}
