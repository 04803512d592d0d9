// Package event provides a small process-wide publish/subscribe bus for
// host lifecycle signals. Every subscription returns a handle that must be
// unsubscribed on teardown so no callback outlives its owner.
package event

import (
	"sync"

	"github.com/google/uuid"
)

// Handler receives a published payload.
type Handler func(payload any)

// Bus fans published events out to subscribed handlers. Delivery is
// synchronous on the publisher's goroutine, preserving the single logical
// thread of control the session tables rely on.
type Bus struct {
	mu     sync.Mutex
	topics map[string]map[string]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[string]map[string]Handler)}
}

// Subscription identifies one registered handler.
type Subscription struct {
	bus   *Bus
	topic string
	id    string
}

// Subscribe registers a handler for a topic and returns its subscription
// handle. A nil handler returns nil.
func (b *Bus) Subscribe(topic string, fn Handler) *Subscription {
	if fn == nil {
		return nil
	}

	sub := &Subscription{bus: b, topic: topic, id: uuid.NewString()}

	b.mu.Lock()
	handlers, ok := b.topics[topic]
	if !ok {
		handlers = make(map[string]Handler)
		b.topics[topic] = handlers
	}
	handlers[sub.id] = fn
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the handler. Unsubscribing twice, or a nil
// subscription, is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}

	s.bus.mu.Lock()
	if handlers, ok := s.bus.topics[s.topic]; ok {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.bus.topics, s.topic)
		}
	}
	s.bus.mu.Unlock()
}

// Publish delivers the payload to every handler subscribed to the topic.
// Handlers run inline on the caller's goroutine.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.topics[topic]))
	for _, fn := range b.topics[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(payload)
	}
}

// HandlerCount returns the number of live subscriptions for a topic.
func (b *Bus) HandlerCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
