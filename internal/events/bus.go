package events

import (
	"sync"
)

const defaultBufferSize = 100

// Bus fans events out to subscribers without ever blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]chan Event
	bufferSize  int
	closed      bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[<-chan Event]chan Event),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe returns a channel receiving every event published from now on.
// The channel is closed by Unsubscribe or Close.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(sub)
	}
}

// Publish delivers event to every subscriber with buffer room. Slow
// subscribers miss events instead of stalling worker goroutines.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels. Later subscriptions receive an
// already closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, key)
	}
	b.closed = true
}
