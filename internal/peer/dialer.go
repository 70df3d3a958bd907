package peer

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"deckpair/internal/domain"
	"deckpair/internal/protocol"
)

// Transport opens connections to a display endpoint. The websocket transport
// is the production implementation; tests substitute an in-memory one.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is a single bidirectional frame connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// WebsocketTransport dials real websocket endpoints.
type WebsocketTransport struct{}

func (WebsocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return wsConn{c}, nil
}

type wsConn struct{ c *websocket.Conn }

func (w wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	return data, err
}
func (w wsConn) WriteMessage(data []byte) error {
	return w.c.WriteMessage(websocket.TextMessage, data)
}
func (w wsConn) Close() error { return w.c.Close() }

// PairURL builds the dial URL for a pairing code on a display host,
// e.g. ws://host:port + code -> ws://host:port/pair/deckpair-overlay-v1-<code>.
func PairURL(base, code string) string {
	return strings.TrimRight(base, "/") + "/pair/" + EndpointID(code)
}

// Config holds the dialer timing knobs. Zero values fall back to the
// production defaults.
type Config struct {
	HeartbeatInterval time.Duration
	RetryInterval     time.Duration
	DeadAfter         time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 2 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 3 * time.Second
	}
	if c.DeadAfter <= 0 {
		c.DeadAfter = 10 * time.Second
	}
	return c
}

// Callbacks receive dialer output. They run on the dialer goroutine and must
// not block.
type Callbacks struct {
	OnPayload func(any)
	OnStatus  func(domain.ConnStatus)
}

// Dialer runs the control side of a pairing. All socket state is owned by a
// single goroutine; exported methods post commands to it.
type Dialer struct {
	transport Transport
	cfg       Config
	cb        Callbacks

	cmds chan dialerCmd
	msgs chan loopMsg

	mu      sync.Mutex
	status  domain.ConnStatus
	latency int64
}

type dialerCmd struct {
	kind    cmdKind
	url     string
	payload any
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdResume
	cmdSend
)

// loopMsg is an internal event from a dial attempt or a read goroutine.
// gen ties it to the connection attempt it belongs to; stale messages from
// superseded connections are dropped.
type loopMsg struct {
	gen  int
	conn Conn // dial success
	fail bool // dial failure
	drop bool // read loop ended
	data []byte
}

func NewDialer(t Transport, cfg Config, cb Callbacks) *Dialer {
	return &Dialer{
		transport: t,
		cfg:       cfg.withDefaults(),
		cb:        cb,
		cmds:      make(chan dialerCmd, 16),
		msgs:      make(chan loopMsg, 64),
		status:    domain.StatusDisconnected,
	}
}

// Connect starts pairing against url. Safe to call while already paired; the
// active connection is kept.
func (d *Dialer) Connect(url string) { d.cmds <- dialerCmd{kind: cmdConnect, url: url} }

// Disconnect tears down the pairing and disables auto-reconnect.
func (d *Dialer) Disconnect() { d.cmds <- dialerCmd{kind: cmdDisconnect} }

// Resume redials immediately after a host wakeup instead of waiting for the
// next retry tick. A no-op unless a pairing was active.
func (d *Dialer) Resume() { d.cmds <- dialerCmd{kind: cmdResume} }

// Send marshals and writes one payload. Dropped when not connected.
func (d *Dialer) Send(payload any) { d.cmds <- dialerCmd{kind: cmdSend, payload: payload} }

func (d *Dialer) Status() domain.ConnStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// LatencyMS is the round-trip time of the last heartbeat echo.
func (d *Dialer) LatencyMS() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latency
}

// Run is the dialer actor. It returns when ctx is cancelled.
func (d *Dialer) Run(ctx context.Context) {
	heartbeat := time.NewTicker(d.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	retry := time.NewTicker(d.cfg.RetryInterval)
	defer retry.Stop()

	var (
		sess = NewSession()
		conn Conn
		gen  int
		url  string
	)
	deadAfter := d.cfg.DeadAfter.Milliseconds()

	apply := func(ev Event) {
		var acts []Action
		sess, acts = Step(sess, ev, deadAfter)
		for _, act := range acts {
			switch act := act.(type) {
			case Dial:
				if conn != nil {
					conn.Close()
					conn = nil
				}
				gen++
				go d.dial(ctx, url, gen)
			case CloseConn:
				if conn != nil {
					conn.Close()
					conn = nil
				}
			case SendPing:
				d.write(conn, protocol.NewPing(act.Now))
			}
		}
		d.publish(sess)
	}

	for {
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
			return

		case cmd := <-d.cmds:
			switch cmd.kind {
			case cmdConnect:
				url = cmd.url
				apply(ConnectRequested{})
			case cmdDisconnect:
				apply(DisconnectRequested{})
			case cmdResume:
				apply(Resumed{})
			case cmdSend:
				if sess.Status == domain.StatusConnected {
					d.write(conn, cmd.payload)
				}
			}

		case m := <-d.msgs:
			if m.gen != gen {
				if m.conn != nil {
					m.conn.Close()
				}
				continue
			}
			switch {
			case m.conn != nil:
				conn = m.conn
				go d.read(conn, gen)
				apply(Opened{Now: nowMS()})
			case m.fail:
				log.Printf("peer: dial %s failed, waiting for retry", url)
				apply(Closed{})
			case m.drop:
				conn = nil
				apply(Closed{})
			default:
				d.handleFrame(m.data, &sess)
			}

		case <-heartbeat.C:
			apply(HeartbeatTick{Now: nowMS()})

		case <-retry.C:
			apply(RetryTick{})
		}
	}
}

func (d *Dialer) handleFrame(data []byte, sess *Session) {
	payload, err := protocol.Decode(data)
	if err != nil {
		log.Printf("peer: dropping frame: %v", err)
		return
	}
	if pong, ok := payload.(protocol.Pong); ok {
		var acts []Action
		*sess, acts = Step(*sess, PongReceived{SentAt: pong.Timestamp, Now: nowMS()}, d.cfg.DeadAfter.Milliseconds())
		_ = acts // pong handling never produces effects
		d.publish(*sess)
		return
	}
	if d.cb.OnPayload != nil {
		d.cb.OnPayload(payload)
	}
}

// dial runs off the actor goroutine; the result is handed back tagged with
// the attempt generation.
func (d *Dialer) dial(ctx context.Context, url string, gen int) {
	conn, err := d.transport.Dial(ctx, url)
	if err != nil {
		select {
		case d.msgs <- loopMsg{gen: gen, fail: true}:
		case <-ctx.Done():
		}
		return
	}
	select {
	case d.msgs <- loopMsg{gen: gen, conn: conn}:
	case <-ctx.Done():
		conn.Close()
	}
}

func (d *Dialer) read(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			d.msgs <- loopMsg{gen: gen, drop: true}
			return
		}
		d.msgs <- loopMsg{gen: gen, data: data}
	}
}

func (d *Dialer) write(conn Conn, payload any) {
	if conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("peer: marshal: %v", err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Printf("peer: write: %v", err)
	}
}

func (d *Dialer) publish(sess Session) {
	d.mu.Lock()
	changed := d.status != sess.Status
	d.status = sess.Status
	d.latency = sess.LatencyMS
	d.mu.Unlock()
	if changed && d.cb.OnStatus != nil {
		d.cb.OnStatus(sess.Status)
	}
}

func nowMS() int64 { return time.Now().UnixMilli() }
