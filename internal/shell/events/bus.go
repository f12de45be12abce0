package events

import "sync"

// =============================================================================
// In-Memory Bus
// =============================================================================

// Handler receives every message published on the bus.
type Handler func(channel string, msg Message)

type subscription struct {
	id int
	fn Handler
}

// Bus is a synchronous in-memory fan-out: Emit invokes every subscriber in
// subscription order on the caller's goroutine. The subscriber list is
// safe for concurrent Subscribe/Emit; handlers themselves run unlocked.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers msg to every subscriber. The subscriber snapshot is taken
// under the read lock so handlers may subscribe or unsubscribe reentrantly.
func (b *Bus) Emit(channel string, msg Message) {
	b.mu.RLock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(channel, msg)
	}
}
