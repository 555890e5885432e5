// Package eventbus provides an in-process publish/subscribe bus used to fan out
// order and sync notifications to API consumers.
package eventbus

import (
	"sync"
	"sync/atomic"
)

const defaultBuffer = 16

// Publisher is the write side of a bus.
type Publisher[T any] interface {
	Publish(T)
}

// TypedBus is a type-safe publish/subscribe bus for events of type T.
// Delivery is non-blocking: a subscriber with a full buffer misses the event
// and the drop is counted.
type TypedBus[T any] struct {
	mu      sync.RWMutex
	subs    []chan T
	closed  bool
	buffer  int
	dropped atomic.Uint64
}

// NewTyped creates a new TypedBus with the default subscriber buffer.
func NewTyped[T any]() *TypedBus[T] { return NewTypedBuffered[T](defaultBuffer) }

// NewTypedBuffered creates a TypedBus whose subscriber channels hold n events.
func NewTypedBuffered[T any](n int) *TypedBus[T] {
	if n <= 0 {
		n = defaultBuffer
	}
	return &TypedBus[T]{buffer: n}
}

// Publish sends the event to all subscribers.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events lost to full subscriber buffers.
func (b *TypedBus[T]) Dropped() uint64 { return b.dropped.Load() }

// Subscribe registers a subscriber and returns its channel.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes the bus and all subscriber channels. It is safe to call twice.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
