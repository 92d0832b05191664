package realtime

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for single-instance deployments and tests.
// Publish delivers to every live subscriber of the channel; slow subscribers
// drop events rather than block the publisher, which is safe because events
// only trigger re-reads.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]chan Event)}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(channel string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[channel][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[channel][id]; ok {
			delete(b.subs[channel], id)
			close(sub)
		}
	}
	return ch, cancel
}

// SubscriberCount reports the live subscriptions on a channel.
func (b *MemoryBus) SubscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}
