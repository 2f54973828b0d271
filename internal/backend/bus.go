package backend

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Handler receives backend events. Handlers run on the publisher's goroutine
// and should not block for long.
type Handler func(Event)

// Events is implemented by anything that delivers backend events.
type Events interface {
	Subscribe(h Handler) *Subscription
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id   string
	once sync.Once
	bus  *Bus
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.remove(s.id)
	})
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Subscribe registers h and returns its handle.
func (b *Bus) Subscribe(h Handler) *Subscription {
	id := uuid.NewString()

	b.mu.Lock()
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	return &Subscription{id: id, bus: b}
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = slices.Delete(b.order, i, i+1)
			break
		}
	}
}

// Publish delivers evt to every current subscriber.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		targets = append(targets, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(evt)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}
