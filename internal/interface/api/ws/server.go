// Package ws is the display host's HTTP surface: the pairing endpoint the
// control deck dials, and a view feed that pushes state snapshots to
// renderer clients.
package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"deckpair/internal/overlay"
	"deckpair/internal/peer"
)

type Server struct {
	addr     string
	listener *peer.Listener
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	lastView overlay.View
	hasView  bool

	httpSrv *http.Server
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewServer wires the pairing listener into an HTTP server on addr.
func NewServer(addr string, listener *peer.Listener) *Server {
	return &Server{
		addr:     addr,
		listener: listener,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// PublishView pushes a snapshot to every renderer client. The latest
// snapshot is replayed to clients connecting later.
func (s *Server) PublishView(v overlay.View) {
	s.mu.Lock()
	s.lastView = v
	s.hasView = true
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.writeJSON(v); err != nil {
			log.Printf("ws: view push: %v", err)
		}
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/pair/{endpoint}", s.handlePair)
	r.Get("/ws/view", s.handleView)
	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ws: shutdown error: %v", err)
		}
	}()

	log.Printf("ws: listening on %s, pairing endpoint /pair/%s", s.addr, s.listener.EndpointID())

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handlePair accepts the control deck. The endpoint name must match this
// listener's pairing code exactly; anything else is not found.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "endpoint") != s.listener.EndpointID() {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: pair upgrade: %v", err)
		return
	}

	// Attach blocks for the life of the pairing.
	s.listener.Attach(pairConn{conn})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: view upgrade: %v", err)
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	replay, hasReplay := s.lastView, s.hasView
	clientCount := len(s.clients)
	s.mu.Unlock()

	log.Printf("ws: renderer connected from %s (%d active)", r.RemoteAddr, clientCount)

	if hasReplay {
		if err := client.writeJSON(replay); err != nil {
			log.Printf("ws: view replay: %v", err)
		}
	}

	go s.drainClient(client)
}

// drainClient discards renderer input until the connection closes; the view
// feed is one-way.
func (s *Server) drainClient(client *wsClient) {
	defer func() {
		client.conn.Close()

		s.mu.Lock()
		delete(s.clients, client)
		clientCount := len(s.clients)
		s.mu.Unlock()

		log.Printf("ws: renderer disconnected (%d active)", clientCount)
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pairConn adapts a gorilla connection to the peer connection interface.
type pairConn struct{ c *websocket.Conn }

func (p pairConn) ReadMessage() ([]byte, error) {
	_, data, err := p.c.ReadMessage()
	return data, err
}

func (p pairConn) WriteMessage(data []byte) error {
	return p.c.WriteMessage(websocket.TextMessage, data)
}

func (p pairConn) Close() error { return p.c.Close() }
