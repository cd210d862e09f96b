package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Subscription is one subscriber's view of the bus. Events arrive on C.
type Subscription struct {
	id    uint64
	types map[EventType]bool
	ch    chan Event
}

// C returns the receive channel for this subscription.
func (s *Subscription) C() <-chan Event { return s.ch }

// Bus is a typed in-process publish/subscribe hub. Subscribers receive only
// the event types they registered for; a subscription with no types receives
// everything. Delivery never blocks the publisher: a full subscriber channel
// drops the event and counts the drop.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*Subscription
	nextID      uint64
	bufferSize  int
	closed      bool

	dropped atomic.Uint64
}

// NewBus creates a bus whose subscriber channels hold bufferSize events.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		subscribers: make(map[uint64]*Subscription),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers interest in the given event types. With no types the
// subscription receives every event.
func (b *Bus) Subscribe(types ...EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		ch: make(chan Event, b.bufferSize),
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sub.id]; exists {
		delete(b.subscribers, sub.id)
		close(sub.ch)
	}
}

// Publish delivers the event to every matching subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if sub.types != nil && !sub.types[event.Type()] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			count := b.dropped.Add(1)
			if count%10 == 1 { // log every 10th drop to avoid spam
				slog.Warn("Event subscriber channel full, dropping event",
					"type", event.Type(), "total_dropped", count)
			}
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (b *Bus) DroppedCount() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down and closes all subscriber channels. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}
