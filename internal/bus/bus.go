// Package bus bridges the restricted side of the service (sessions, the bot)
// and the privileged side that is allowed to read host page state.
//
// Both sides share one broadcast Bus that also carries unrelated traffic.
// A Transport sends correlated transcript requests and waits for exactly one
// matching response; a Responder answers them.
package bus

import (
	"log/slog"
	"sync"
)

const (
	TypeRequest  = "yts-get-transcript"
	TypeResponse = "yts-transcript-response"
)

// Envelope is the only contract between the two sides. VideoID is set on
// requests; Method and Text on successful responses; Error on failed ones.
type Envelope struct {
	Type          string `json:"type"`
	CorrelationID string `json:"msgId"`
	VideoID       string `json:"videoId,omitempty"`
	Method        string `json:"method,omitempty"`
	Text          string `json:"text,omitempty"`
	Error         string `json:"error,omitempty"`
}

type subscriber struct {
	ch       chan Envelope
	lossless bool
	// done is closed before the subscriber is removed so that a publisher
	// blocked on a lossless send can let go of the read lock.
	done chan struct{}
}

type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscriber
	nextID    uint64
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func New(log *slog.Logger) *Bus {
	return &Bus{
		subs:    make(map[uint64]*subscriber),
		closing: make(chan struct{}),
		log:     log,
	}
}

// Subscribe registers a listener that receives every message published after
// the call. A full buffer makes it miss messages. The returned cancel func is
// idempotent and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Envelope, func()) {
	return b.subscribe(buffer, false)
}

// SubscribeLossless is Subscribe for listeners that must see every message:
// Publish waits for room in the buffer until the subscription is cancelled or
// the bus is closed. The listener must keep draining its channel.
func (b *Bus) SubscribeLossless(buffer int) (<-chan Envelope, func()) {
	return b.subscribe(buffer, true)
}

func (b *Bus) subscribe(buffer int, lossless bool) (<-chan Envelope, func()) {
	sub := &subscriber{
		ch:       make(chan Envelope, buffer),
		lossless: lossless,
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(sub.done)

			b.mu.Lock()
			defer b.mu.Unlock()

			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}

	return sub.ch, cancel
}

// Publish never blocks on lossy subscribers: one with a full buffer misses
// the message. Lossless subscribers are waited for.
func (b *Bus) Publish(msg Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, sub := range b.subs {
		if sub.lossless {
			select {
			case sub.ch <- msg:
			case <-sub.done:
			case <-b.closing:
			}

			continue
		}

		select {
		case sub.ch <- msg:
		default:
			b.log.Warn("Bus subscriber is full, message is dropped",
				"subscriberID", id,
				"type", msg.Type,
				"correlationID", msg.CorrelationID)
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.closing) })

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
