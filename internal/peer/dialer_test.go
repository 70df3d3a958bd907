package peer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"deckpair/internal/domain"
	"deckpair/internal/protocol"
)

// memConn is an in-memory frame connection driven by the test.
type memConn struct {
	in     chan []byte // frames the dialer will read
	out    chan []byte // frames the dialer wrote
	closed chan struct{}
	once   sync.Once
}

func newMemConn() *memConn {
	return &memConn{
		in:     make(chan []byte, 32),
		out:    make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (c *memConn) ReadMessage() ([]byte, error) {
	select {
	case d := <-c.in:
		return d, nil
	case <-c.closed:
		return nil, errors.New("closed")
	}
}

func (c *memConn) WriteMessage(d []byte) error {
	select {
	case c.out <- d:
		return nil
	case <-c.closed:
		return errors.New("closed")
	}
}

func (c *memConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *memConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// memTransport scripts dial outcomes. A nil entry succeeds and hands the
// test the connection on dialed; a non-nil entry fails the attempt. Once the
// script runs out, every dial succeeds.
type memTransport struct {
	mu       sync.Mutex
	outcomes []error
	dialed   chan *memConn
}

func newMemTransport() *memTransport {
	return &memTransport{dialed: make(chan *memConn, 8)}
}

func (t *memTransport) script(outcomes ...error) {
	t.mu.Lock()
	t.outcomes = append(t.outcomes, outcomes...)
	t.mu.Unlock()
}

func (t *memTransport) Dial(ctx context.Context, url string) (Conn, error) {
	t.mu.Lock()
	var outcome error
	if len(t.outcomes) > 0 {
		outcome = t.outcomes[0]
		t.outcomes = t.outcomes[1:]
	}
	t.mu.Unlock()
	if outcome != nil {
		return nil, outcome
	}
	c := newMemConn()
	t.dialed <- c
	return c, nil
}

// answerPings echoes a pong for every ping until the connection closes,
// forwarding non-ping frames to forward.
func answerPings(c *memConn, forward chan<- []byte) {
	go func() {
		for {
			select {
			case <-c.closed:
				return
			case data := <-c.out:
				var head struct {
					Type      string `json:"type"`
					Timestamp int64  `json:"timestamp"`
				}
				if json.Unmarshal(data, &head) == nil && head.Type == protocol.TypePing {
					reply, _ := json.Marshal(protocol.NewPong(head.Timestamp, time.Now().UnixMilli()))
					c.in <- reply
					continue
				}
				if forward != nil {
					forward <- data
				}
			}
		}
	}()
}

func fastConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Millisecond,
		RetryInterval:     15 * time.Millisecond,
		DeadAfter:         40 * time.Millisecond,
	}
}

func startDialer(t *testing.T, tr Transport, cfg Config, cb Callbacks) *Dialer {
	t.Helper()
	d := NewDialer(tr, cfg, cb)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Run(ctx)
	return d
}

func waitStatus(t *testing.T, ch <-chan domain.ConnStatus, want domain.ConnStatus) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %v", want)
		}
	}
}

func TestDialerPairsAndHeartbeats(t *testing.T) {
	tr := newMemTransport()
	statuses := make(chan domain.ConnStatus, 16)
	d := startDialer(t, tr, fastConfig(), Callbacks{
		OnStatus: func(st domain.ConnStatus) { statuses <- st },
	})

	d.Connect(PairURL("ws://display.local:8422", "1234"))
	conn := <-tr.dialed
	answerPings(conn, nil)
	waitStatus(t, statuses, domain.StatusConnected)

	// A healthy link must keep probing and record a round-trip time.
	time.Sleep(60 * time.Millisecond)
	if d.Status() != domain.StatusConnected {
		t.Fatalf("status = %v, want CONNECTED", d.Status())
	}
	if conn.isClosed() {
		t.Fatal("healthy connection was closed")
	}
}

func TestDialerZombieForcesReconnect(t *testing.T) {
	tr := newMemTransport()
	statuses := make(chan domain.ConnStatus, 16)
	d := startDialer(t, tr, fastConfig(), Callbacks{
		OnStatus: func(st domain.ConnStatus) { statuses <- st },
	})

	d.Connect(PairURL("ws://display.local:8422", "1234"))
	zombie := <-tr.dialed
	waitStatus(t, statuses, domain.StatusConnected)

	// Never answer pings: the dialer must declare the link dead, close it
	// and dial again on its own.
	replacement := <-tr.dialed
	if !zombie.isClosed() {
		t.Fatal("zombie connection was not closed")
	}
	answerPings(replacement, nil)
	waitStatus(t, statuses, domain.StatusConnected)
}

func TestDialerRetriesAfterFailedDial(t *testing.T) {
	tr := newMemTransport()
	tr.script(errors.New("refused"), errors.New("refused"))
	statuses := make(chan domain.ConnStatus, 16)
	d := startDialer(t, tr, fastConfig(), Callbacks{
		OnStatus: func(st domain.ConnStatus) { statuses <- st },
	})

	d.Connect(PairURL("ws://display.local:8422", "7777"))

	// Two scripted failures, then the third attempt lands.
	conn := <-tr.dialed
	answerPings(conn, nil)
	waitStatus(t, statuses, domain.StatusConnected)
}

func TestDialerReconnectsAfterDrop(t *testing.T) {
	tr := newMemTransport()
	statuses := make(chan domain.ConnStatus, 16)
	d := startDialer(t, tr, fastConfig(), Callbacks{
		OnStatus: func(st domain.ConnStatus) { statuses <- st },
	})

	d.Connect(PairURL("ws://display.local:8422", "1234"))
	first := <-tr.dialed
	answerPings(first, nil)
	waitStatus(t, statuses, domain.StatusConnected)

	first.Close()
	waitStatus(t, statuses, domain.StatusDisconnected)
	if lat := d.LatencyMS(); lat != 0 {
		t.Fatalf("latency after drop = %d, want 0", lat)
	}

	second := <-tr.dialed
	answerPings(second, nil)
	waitStatus(t, statuses, domain.StatusConnected)
}

func TestDialerDisconnectStopsRedialing(t *testing.T) {
	tr := newMemTransport()
	statuses := make(chan domain.ConnStatus, 16)
	d := startDialer(t, tr, fastConfig(), Callbacks{
		OnStatus: func(st domain.ConnStatus) { statuses <- st },
	})

	d.Connect(PairURL("ws://display.local:8422", "1234"))
	conn := <-tr.dialed
	answerPings(conn, nil)
	waitStatus(t, statuses, domain.StatusConnected)

	d.Disconnect()
	waitStatus(t, statuses, domain.StatusDisconnected)
	if !conn.isClosed() {
		t.Fatal("connection not closed on disconnect")
	}

	select {
	case <-tr.dialed:
		t.Fatal("dialer redialed after manual disconnect")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDialerSendAndReceive(t *testing.T) {
	tr := newMemTransport()
	statuses := make(chan domain.ConnStatus, 16)
	payloads := make(chan any, 16)
	d := startDialer(t, tr, fastConfig(), Callbacks{
		OnStatus:  func(st domain.ConnStatus) { statuses <- st },
		OnPayload: func(p any) { payloads <- p },
	})

	d.Connect(PairURL("ws://display.local:8422", "1234"))
	conn := <-tr.dialed
	sent := make(chan []byte, 16)
	answerPings(conn, sent)
	waitStatus(t, statuses, domain.StatusConnected)

	d.Send(protocol.NewPollReaction("1", protocol.ReactionUp))
	data := <-sent
	var got protocol.PollReaction
	if err := json.Unmarshal(data, &got); err != nil || got.Type != protocol.TypePollReaction {
		t.Fatalf("sent frame = %s, err = %v", data, err)
	}

	// Inbound frames other than pongs surface through OnPayload.
	frame, _ := json.Marshal(protocol.NewPollUpdate(domain.PollState{Active: true, Question: "q"}))
	conn.in <- frame
	select {
	case p := <-payloads:
		upd, ok := p.(protocol.PollUpdate)
		if !ok || upd.Poll.Question != "q" {
			t.Fatalf("payload = %#v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestOverlappingConnectsLeaveOneLiveHandle(t *testing.T) {
	tr := newMemTransport()
	statuses := make(chan domain.ConnStatus, 16)
	d := startDialer(t, tr, fastConfig(), Callbacks{
		OnStatus: func(st domain.ConnStatus) { statuses <- st },
	})

	url := PairURL("ws://display.local:8422", "1234")
	d.Connect(url)
	d.Connect(url)

	// Depending on interleaving the second connect is either a no-op or a
	// superseding dial; collect whatever attempts happened.
	var conns []*memConn
	collect := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case c := <-tr.dialed:
			answerPings(c, nil)
			conns = append(conns, c)
		case <-collect:
			break loop
		}
	}
	if len(conns) == 0 {
		t.Fatal("no dial attempt")
	}
	waitStatus(t, statuses, domain.StatusConnected)

	time.Sleep(50 * time.Millisecond)
	live := 0
	for _, c := range conns {
		if !c.isClosed() {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("live handles = %d, want exactly 1", live)
	}
}

func TestDialerSendDroppedWhenDisconnected(t *testing.T) {
	tr := newMemTransport()
	d := startDialer(t, tr, fastConfig(), Callbacks{})

	d.Send(protocol.NewPollReaction("1", protocol.ReactionUp))

	select {
	case <-tr.dialed:
		t.Fatal("send must not trigger a dial")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPairURL(t *testing.T) {
	got := PairURL("ws://10.0.0.5:8422/", "4921")
	want := "ws://10.0.0.5:8422/pair/deckpair-overlay-v1-4921"
	if got != want {
		t.Fatalf("PairURL = %q, want %q", got, want)
	}
}
