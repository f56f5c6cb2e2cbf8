package guard

import (
	"context"
	"sync"

	"github.com/linnemanlabs/go-core/log"
)

// MessageType labels a broadcast message for subscribers.
type MessageType string

const (
	// MsgNewEvent carries a finalized Event
	MsgNewEvent MessageType = "new_event"

	// MsgStatusUpdate carries an event ID and its new operator status
	MsgStatusUpdate MessageType = "status_update"

	// MsgVoiceCall carries a CallRecord for a dispatched escalation
	MsgVoiceCall MessageType = "voice_call"
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// StatusUpdate is the payload of a MsgStatusUpdate message.
type StatusUpdate struct {
	EventID string      `json:"event_id"`
	Status  EventStatus `json:"status"`
}

// Broadcaster fans messages out to live subscribers. Delivery is best
// effort: a subscriber whose buffer is full has the message dropped rather
// than stalling publication, and the scan path never blocks on it.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Message]struct{}
	buffer int
	logger log.Logger
	onDrop func()
}

// NewBroadcaster creates a Broadcaster whose subscribers each get a buffered
// channel of the given size.
func NewBroadcaster(buffer int, logger log.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Broadcaster{
		subs:   make(map[chan Message]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// OnDrop registers a callback invoked once per dropped message. Used to wire
// a metrics counter; must be set before Subscribe/Publish traffic starts.
func (b *Broadcaster) OnDrop(fn func()) {
	b.onDrop = fn
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it; after cancel the channel is closed.
func (b *Broadcaster) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers msg to every subscriber, preserving per-subscriber FIFO
// order across calls. Never blocks.
func (b *Broadcaster) Publish(ctx context.Context, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
			b.logger.Warn(ctx, "dropping broadcast message for slow subscriber", "type", msg.Type)
		}
	}
}
