package service

import "sync"

// EventBus is a fan-out pub/sub for session snapshots. Each subscriber has a
// small buffer; when it is full the oldest snapshot is dropped so a slow
// stream always catches up to the latest state.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[chan Snapshot]struct{}
	closed bool
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Snapshot]struct{})}
}

// Publish sends a snapshot to all subscribers (non-blocking).
func (b *EventBus) Publish(s Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// subscriber too slow, replace its oldest snapshot
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a buffered channel that receives snapshots. The
// channel of a closed bus is already closed.
func (b *EventBus) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 8)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Close unsubscribes everyone, ending their streams.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of active subscribers.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
