// Package runtime wires the deck role together: config store, chat session,
// poll tally, peer dialer and platform pollers, glued over the event bus.
package runtime

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"deckpair/internal/app/events"
	"deckpair/internal/chat"
	"deckpair/internal/domain"
	"deckpair/internal/infrastructure/config"
	sqlitestorage "deckpair/internal/infrastructure/persistence/sqlite"
	twitchinfra "deckpair/internal/infrastructure/platform/twitch"
	"deckpair/internal/peer"
	"deckpair/internal/poll"
	"deckpair/internal/protocol"
)

const (
	debugLogSize     = 100
	messageRingSize  = 200
	followerInterval = 60 * time.Second
)

type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config

	store   *sqlitestorage.DeckStore
	bus     *events.Bus
	chat    *chat.Session
	dialer  *peer.Dialer
	tracker *poll.Tracker
	stream  *twitchinfra.StreamService

	wg sync.WaitGroup

	mu         sync.Mutex
	deckCfg    domain.DeckConfig
	identity   twitchinfra.Identity
	messages   []domain.ChatMessage
	events     []domain.StreamEvent
	debugLog   []string
	viewers    int
	pollCancel context.CancelFunc
}

// Start loads the profile and brings up the deck. Chat and the platform
// pollers only start when credentials are configured; pairing waits for
// Pair().
func Start(ctx context.Context, cfg *config.Config, store *sqlitestorage.DeckStore) (*Runtime, error) {
	runtimeCtx, cancel := context.WithCancel(ctx)

	deckCfg, err := store.Load(runtimeCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("runtime: load profile: %w", err)
	}
	mergePlatformEnv(&deckCfg.PlatformConfig, cfg)

	r := &Runtime{
		ctx:     runtimeCtx,
		cancel:  cancel,
		cfg:     cfg,
		store:   store,
		bus:     events.NewBus(),
		deckCfg: deckCfg,
	}

	r.tracker = poll.NewTracker(func(state domain.PollState) {
		r.dialer.Send(protocol.NewPollUpdate(state))
	})

	r.dialer = peer.NewDialer(peer.WebsocketTransport{}, peer.Config{}, peer.Callbacks{
		OnStatus: func(st domain.ConnStatus) {
			log.Printf("runtime: peer %s", st)
			r.bus.Publish(events.TopicPeerStatus, st)
		},
		OnPayload: func(p any) {
			log.Printf("runtime: unexpected peer payload %T", p)
		},
	})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.dialer.Run(runtimeCtx)
	}()

	r.chat = chat.NewSession("", chat.Callbacks{
		OnMessage: r.onChatMessage,
		OnEvent:   r.onStreamEvent,
		OnLog:     r.onChatLog,
		OnStatus: func(st domain.ConnStatus) {
			r.bus.Publish(events.TopicChatStatus, st)
		},
	})

	if err := r.startPlatform(); err != nil {
		log.Printf("runtime: platform offline: %v", err)
	}

	return r, nil
}

// mergePlatformEnv fills profile gaps from the environment; a saved profile
// always wins.
func mergePlatformEnv(pc *domain.PlatformConfig, cfg *config.Config) {
	if pc.ClientID == "" {
		pc.ClientID = cfg.TwitchClientID
	}
	if pc.AccessToken == "" {
		pc.AccessToken = cfg.TwitchToken
	}
	if pc.Channel == "" {
		pc.Channel = cfg.TwitchChannel
	}
	if pc.PollIntervalSeconds <= 0 {
		pc.PollIntervalSeconds = int(cfg.PollInterval / time.Second)
	}
}

// startPlatform validates the token, connects chat and starts the pollers.
// Called on boot and again after a profile save changes credentials.
func (r *Runtime) startPlatform() error {
	r.mu.Lock()
	pc := r.deckCfg.PlatformConfig
	if r.pollCancel != nil {
		r.pollCancel()
		r.pollCancel = nil
	}
	r.mu.Unlock()

	if pc.AccessToken == "" || pc.Channel == "" {
		return fmt.Errorf("runtime: platform credentials not configured")
	}

	svc, err := twitchinfra.NewStreamService(pc.ClientID, strings.TrimPrefix(pc.AccessToken, "oauth:"))
	if err != nil {
		return err
	}
	identity, err := svc.Validate(pc.AccessToken)
	if err != nil {
		return err
	}
	log.Printf("runtime: token valid for %s", identity.Login)

	r.mu.Lock()
	r.stream = svc
	r.identity = identity
	r.mu.Unlock()

	if err := r.chat.Connect(r.ctx, chat.Credentials{
		Username: identity.Login,
		Token:    pc.AccessToken,
		Channel:  pc.Channel,
	}); err != nil {
		log.Printf("runtime: chat connect: %v", err)
	}

	pollCtx, cancel := context.WithCancel(r.ctx)
	r.mu.Lock()
	r.pollCancel = cancel
	r.mu.Unlock()

	viewerPoller := twitchinfra.NewPoller(svc, pc.Channel, "",
		time.Duration(pc.PollIntervalSeconds)*time.Second, "",
		twitchinfra.PollerCallbacks{OnViewers: r.onViewers})
	followerPoller := twitchinfra.NewPoller(svc, pc.Channel, identity.UserID,
		followerInterval, pc.EventTemplates.Follow,
		twitchinfra.PollerCallbacks{OnFollower: r.onStreamEvent})

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		viewerPoller.Run(pollCtx)
	}()
	go func() {
		defer r.wg.Done()
		followerPoller.Run(pollCtx)
	}()
	return nil
}

func (r *Runtime) onChatMessage(msg domain.ChatMessage) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	if len(r.messages) > messageRingSize {
		r.messages = r.messages[len(r.messages)-messageRingSize:]
	}
	r.mu.Unlock()

	r.bus.Publish(events.TopicChatMessage, msg)
	r.tracker.CastVote(msg.Text)
}

func (r *Runtime) onStreamEvent(ev domain.StreamEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()

	r.bus.Publish(events.TopicStreamEvent, ev)
}

func (r *Runtime) onChatLog(e chat.LogEntry) {
	prefix := "  "
	switch e.Kind {
	case chat.LogIn:
		prefix = "< "
	case chat.LogOut:
		prefix = "> "
	case chat.LogError:
		prefix = "! "
	}

	r.mu.Lock()
	r.debugLog = append(r.debugLog, prefix+e.Text)
	if len(r.debugLog) > debugLogSize {
		r.debugLog = r.debugLog[len(r.debugLog)-debugLogSize:]
	}
	r.mu.Unlock()

	r.bus.Publish(events.TopicChatLog, e)
}

func (r *Runtime) onViewers(count int) {
	r.mu.Lock()
	r.viewers = count
	r.mu.Unlock()

	r.bus.Publish(events.TopicStreamViewers, count)
}

// Bus exposes the event stream for frontends.
func (r *Runtime) Bus() *events.Bus { return r.bus }

// Pair dials the display host with a pairing code.
func (r *Runtime) Pair(code string) error {
	code = strings.TrimSpace(code)
	if len(code) != 4 {
		return fmt.Errorf("runtime: pairing code must be four digits")
	}
	r.dialer.Connect(peer.PairURL(r.cfg.OverlayURL, code))
	return nil
}

func (r *Runtime) Unpair() { r.dialer.Disconnect() }

// ResumeLink forces an immediate redial after the host wakes up.
func (r *Runtime) ResumeLink() { r.dialer.Resume() }

func (r *Runtime) PeerStatus() domain.ConnStatus { return r.dialer.Status() }

func (r *Runtime) PeerLatencyMS() int64 { return r.dialer.LatencyMS() }

// TriggerSound fires a deck button on the paired display.
func (r *Runtime) TriggerSound(id string) error {
	r.mu.Lock()
	btn := domain.FindSound(r.deckCfg.SoundButtons, id)
	r.mu.Unlock()
	if btn == nil {
		return fmt.Errorf("runtime: unknown sound %q", id)
	}
	r.dialer.Send(protocol.TriggerFromSound(*btn))
	return nil
}

// ShowChat spotlights a received message on the display and marks it read.
func (r *Runtime) ShowChat(messageID string) error {
	r.mu.Lock()
	var found *domain.ChatMessage
	for i := range r.messages {
		if r.messages[i].ID == messageID {
			r.messages[i].Read = true
			m := r.messages[i]
			found = &m
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return fmt.Errorf("runtime: unknown message %q", messageID)
	}
	r.dialer.Send(protocol.NewShowChatMsg(*found))
	return nil
}

// SendChat posts to the connected channel.
func (r *Runtime) SendChat(text string) { r.chat.SendMessage(text) }

// StartPoll opens a poll and pushes it to the display.
func (r *Runtime) StartPoll(question string, options []string) (domain.PollState, error) {
	if len(options) < 2 {
		return domain.PollState{}, fmt.Errorf("runtime: a poll needs at least two options")
	}
	return r.tracker.Start(question, options), nil
}

// EndPoll closes the poll; the display shows the final tally briefly.
func (r *Runtime) EndPoll() (domain.PollState, error) {
	final, ok := r.tracker.End()
	if !ok {
		return domain.PollState{}, fmt.Errorf("runtime: no active poll")
	}
	r.dialer.Send(protocol.NewPollEnd(final))
	return final, nil
}

// ReactPoll sends a cosmetic cue for one poll option.
func (r *Runtime) ReactPoll(optionID, reaction string) error {
	if reaction != protocol.ReactionUp && reaction != protocol.ReactionDown {
		return fmt.Errorf("runtime: reaction must be up or down")
	}
	if !r.tracker.React(optionID) {
		return fmt.Errorf("runtime: unknown poll option %q", optionID)
	}
	r.dialer.Send(protocol.NewPollReaction(optionID, reaction))
	return nil
}

func (r *Runtime) CurrentPoll() (domain.PollState, bool) { return r.tracker.Current() }

// MarkEventSeen acknowledges a stream event.
func (r *Runtime) MarkEventSeen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Seen = true
			return true
		}
	}
	return false
}

// Messages returns the recent chat backlog, newest last.
func (r *Runtime) Messages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// Events returns every stream event of this session.
func (r *Runtime) Events() []domain.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StreamEvent, len(r.events))
	copy(out, r.events)
	return out
}

// DebugLog returns the last chat traffic lines with direction prefixes.
func (r *Runtime) DebugLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.debugLog))
	copy(out, r.debugLog)
	return out
}

func (r *Runtime) Viewers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewers
}

func (r *Runtime) ChatStatus() domain.ConnStatus { return r.chat.Status() }

// Config returns the current profile.
func (r *Runtime) Config() domain.DeckConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.DeckConfig{
		SoundButtons:   append([]domain.SoundItem(nil), r.deckCfg.SoundButtons...),
		PlatformConfig: r.deckCfg.PlatformConfig,
	}
}

// SaveConfig persists a profile and re-applies the platform section.
func (r *Runtime) SaveConfig(cfg domain.DeckConfig) error {
	if err := r.store.Save(r.ctx, cfg); err != nil {
		return err
	}

	r.mu.Lock()
	credsChanged := cfg.PlatformConfig != r.deckCfg.PlatformConfig
	r.deckCfg = cfg
	r.mu.Unlock()

	if credsChanged {
		r.chat.Disconnect()
		if err := r.startPlatform(); err != nil {
			log.Printf("runtime: platform offline: %v", err)
		}
	}
	return nil
}

// ExportConfig returns the profile as a portable JSON document.
func (r *Runtime) ExportConfig() ([]byte, error) { return r.store.ExportJSON(r.ctx) }

// ImportConfig validates, stores and applies a profile document.
func (r *Runtime) ImportConfig(raw []byte) error {
	cfg, err := r.store.ImportJSON(r.ctx, raw)
	if err != nil {
		return err
	}
	return r.SaveConfig(cfg)
}

// Shutdown tears everything down and waits for the workers.
func (r *Runtime) Shutdown() {
	r.chat.Disconnect()
	r.dialer.Disconnect()
	r.cancel()
	r.wg.Wait()
	r.bus.Close()
}
