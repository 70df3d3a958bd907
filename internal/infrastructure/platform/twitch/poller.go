package twitchinfra

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"deckpair/internal/domain"
)

// PollerCallbacks receive poller output on the poller goroutine.
type PollerCallbacks struct {
	OnViewers  func(int)
	OnFollower func(domain.StreamEvent)
}

// Poller periodically samples the viewer count and the latest follower.
// A new follower becomes a FOLLOW event rendered through the configured
// template; repeats of the same name are suppressed.
type Poller struct {
	svc      *StreamService
	channel  string
	userID   string
	interval time.Duration
	template string
	cb       PollerCallbacks

	lastFollower string
	primed       bool
}

func NewPoller(svc *StreamService, channel, userID string, interval time.Duration, template string, cb PollerCallbacks) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if template == "" {
		template = domain.DefaultEventTemplates().Follow
	}
	return &Poller{
		svc:      svc,
		channel:  channel,
		userID:   userID,
		interval: interval,
		template: template,
		cb:       cb,
	}
}

// Run samples immediately, then on each interval until ctx is cancelled.
// API failures are logged and skipped; the loop never stops on its own.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sample()
		}
	}
}

func (p *Poller) sample() {
	if p.cb.OnViewers != nil {
		viewers, err := p.svc.ViewerCount(p.channel)
		if err != nil {
			log.Printf("twitch: viewer count: %v", err)
		} else {
			p.cb.OnViewers(viewers)
		}
	}

	if p.cb.OnFollower != nil && p.userID != "" {
		name, err := p.svc.LatestFollower(p.userID)
		if err != nil {
			log.Printf("twitch: latest follower: %v", err)
			return
		}
		p.noteFollower(name)
	}
}

// noteFollower emits an event only on a change after the first sample, so a
// restart does not re-announce an old follower.
func (p *Poller) noteFollower(name string) {
	if !p.primed {
		p.primed = true
		p.lastFollower = name
		return
	}
	if name == "" || name == p.lastFollower {
		return
	}
	p.lastFollower = name

	p.cb.OnFollower(domain.StreamEvent{
		ID:        uuid.NewString(),
		Kind:      domain.EventFollow,
		Username:  name,
		Details:   RenderTemplate(p.template, name),
		Timestamp: time.Now().UnixMilli(),
	})
}

// RenderTemplate substitutes {user} in an event template.
func RenderTemplate(template, user string) string {
	return strings.ReplaceAll(template, "{user}", user)
}
