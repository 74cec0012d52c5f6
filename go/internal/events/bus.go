package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Bus delivers events to the chat layer. Delivery is best-effort: the engine
// logs emission failures and moves on, it never blocks a state machine on them.
type Bus interface {
	Emit(ctx context.Context, event Event) error
}

// ChannelBus fans events out to in-process subscribers. A slow subscriber
// drops events instead of stalling the engine.
type ChannelBus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
	size int
}

// NewChannelBus creates a bus whose subscriber channels buffer size events.
func NewChannelBus(size int) *ChannelBus {
	if size <= 0 {
		size = 64
	}
	return &ChannelBus{subs: make(map[int]chan Event), size: size}
}

// Subscribe returns a receive channel and an unsubscribe func.
func (b *ChannelBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, b.size)
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
}

// Emit delivers to every subscriber without blocking.
func (b *ChannelBus) Emit(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Warn().
				Int("subscriber", id).
				Str("task_id", event.TaskID).
				Str("type", string(event.Type)).
				Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

// MultiBus emits to several buses in order; the first error is returned after
// all buses got a chance to deliver.
type MultiBus []Bus

func (m MultiBus) Emit(ctx context.Context, event Event) error {
	var first error
	for _, b := range m {
		if err := b.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NopBus discards everything; handy default for tools and tests.
type NopBus struct{}

func (NopBus) Emit(context.Context, Event) error { return nil }
