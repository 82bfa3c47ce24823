package events

import "sync"

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// SubscriberFunc adapts a function into a Subscriber that never closes.
type SubscriberFunc func(ev Event)

func (f SubscriberFunc) Receive(ev Event) { f(ev) }
func (f SubscriberFunc) Closed() bool     { return false }

// Bus delivers archive events to subscribers, either every event or only
// those of selected types. Delivery is synchronous, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	byType map[EventType][]Subscriber
	global []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		byType: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for the given event types.
func (b *Bus) Subscribe(sub Subscriber, types ...EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.byType[t] = append(b.byType[t], sub)
	}
}

// Unsubscribe removes a subscriber from every list it is on. sub must be
// comparable, so a SubscriberFunc cannot be unsubscribed.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.byType {
		b.byType[t] = without(subs, sub)
		if len(b.byType[t]) == 0 {
			delete(b.byType, t)
		}
	}
	b.global = without(b.global, sub)
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit sends ev to the subscribers of its type, then to global subscribers.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := b.byType[ev.Type]
	globals := b.global
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// Subscribers returns the number of subscribers for an event type,
// global ones excluded.
func (b *Bus) Subscribers(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byType[t])
}

// Cleanup removes closed subscribers from all lists.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.byType {
		var active []Subscriber
		for _, s := range subs {
			if !s.Closed() {
				active = append(active, s)
			}
		}
		if len(active) == 0 {
			delete(b.byType, t)
		} else {
			b.byType[t] = active
		}
	}

	var activeGlobal []Subscriber
	for _, s := range b.global {
		if !s.Closed() {
			activeGlobal = append(activeGlobal, s)
		}
	}
	b.global = activeGlobal
}

func without(subs []Subscriber, sub Subscriber) []Subscriber {
	out := subs[:0:0]
	for _, s := range subs {
		if s != sub {
			out = append(out, s)
		}
	}
	return out
}
