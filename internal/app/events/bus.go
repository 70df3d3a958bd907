// Package events is the in-process fan-out between the runtime and whatever
// frontend is attached to it. Publishing never blocks; a subscriber that
// stops draining loses messages, not the producer.
package events

import (
	"log"
	"sync"
)

const (
	TopicChatMessage   = "chat:message"
	TopicStreamEvent   = "chat:event"
	TopicChatLog       = "chat:log"
	TopicChatStatus    = "chat:status"
	TopicPeerStatus    = "peer:status"
	TopicStreamViewers = "stream:viewers"

	subscriberBuffer = 128
	dropLogEvery     = 100
)

type subscriber struct {
	id int
	ch chan any
}

type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscriber
	nextID int
	closed bool

	dropMu sync.Mutex
	drops  map[string]uint64
}

func NewBus() *Bus {
	return &Bus{
		topics: make(map[string][]subscriber),
		drops:  make(map[string]uint64),
	}
}

func (b *Bus) Publish(topic string, payload any) {
	if topic == "" {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := append([]subscriber(nil), b.topics[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- payload:
		default:
			b.recordDrop(topic)
		}
	}
}

// Subscribe returns a receive channel for one topic and a cancel function.
// Cancel closes the channel; so does Close.
func (b *Bus) Subscribe(topic string) (<-chan any, func()) {
	ch := make(chan any, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, ch: ch})
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		found := false
		subs := b.topics[topic]
		for i := range subs {
			if subs[i].id == id {
				b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
				found = true
				break
			}
		}
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		b.mu.Unlock()
		if found {
			close(ch)
		}
	}
	return ch, cancel
}

// Close stops delivery and closes every subscriber channel; further
// publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.topics {
		for _, s := range subs {
			close(s.ch)
		}
		delete(b.topics, topic)
	}
}

func (b *Bus) recordDrop(topic string) {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	b.drops[topic]++
	if b.drops[topic]%dropLogEvery == 1 {
		log.Printf("events: dropping messages for %s (total drops: %d)", topic, b.drops[topic])
	}
}
