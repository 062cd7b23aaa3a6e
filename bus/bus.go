// Package bus carries hub traffic between server instances. Payloads are
// opaque; channel names are the hub's (user_<id>, room_<id>).
package bus

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("bus closed")

// Handler receives every message published on any channel.
type Handler func(channel string, payload []byte)

type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe registers h for all channels. Delivery stops when ctx ends or
	// the bus is closed.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// Local is an in-process loopback bus. Publish delivers synchronously to
// every subscribed handler.
type Local struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	next     int
	closed   bool
}

func NewLocal() *Local {
	return &Local{handlers: make(map[int]Handler)}
}

func (b *Local) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(channel, payload)
	}
	return nil
}

func (b *Local) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	id := b.next
	b.next++
	b.handlers[id] = h

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *Local) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[int]Handler)
	return nil
}
