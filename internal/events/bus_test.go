package events

import (
	"sync"
	"testing"
	"time"
)

// mockSubscriber implements Subscriber for testing.
type mockSubscriber struct {
	mu       sync.Mutex
	events   []Event
	isClosed bool
}

func (m *mockSubscriber) Receive(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockSubscriber) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClosed
}

func (m *mockSubscriber) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(m.events))
	copy(cp, m.events)
	return cp
}

func TestBusEmitByType(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe(sub, EvEmailAdded, EvThreadAdded)

	bus.Emit(Event{Type: EvEmailAdded, EmailID: 7, ThreadID: 3})
	bus.Emit(Event{Type: EvVoteChanged, EmailID: 7})
	bus.Emit(Event{Type: EvThreadAdded, ThreadID: 3})

	events := sub.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EvEmailAdded || events[0].EmailID != 7 {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[1].Type != EvThreadAdded {
		t.Errorf("expected thread_added, got %v", events[1].Type)
	}
}

func TestBusGlobalSubscriber(t *testing.T) {
	bus := NewBus()
	global := &mockSubscriber{}
	bus.SubscribeGlobal(global)

	bus.Emit(Event{Type: EvBatchCompleted, Threads: []int64{1, 2}})

	events := global.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 global event, got %d", len(events))
	}
	if len(events[0].Threads) != 2 {
		t.Errorf("expected 2 threads, got %v", events[0].Threads)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	other := &mockSubscriber{}

	bus.Subscribe(sub, EvEmailDeleted)
	bus.Subscribe(other, EvEmailDeleted)
	bus.Unsubscribe(sub)

	bus.Emit(Event{Type: EvEmailDeleted, EmailID: 1})

	if len(sub.Events()) != 0 {
		t.Error("expected no events after unsubscribe")
	}
	if len(other.Events()) != 1 {
		t.Error("other subscriber should still receive events")
	}
	if n := bus.Subscribers(EvEmailDeleted); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
}

func TestBusClosedSubscriberSkipped(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{isClosed: true}

	bus.Subscribe(sub, EvEmailAdded)
	bus.Emit(Event{Type: EvEmailAdded})

	if len(sub.Events()) != 0 {
		t.Error("closed subscriber should not receive events")
	}

	bus.Cleanup()
	if n := bus.Subscribers(EvEmailAdded); n != 0 {
		t.Errorf("expected closed subscriber to be removed, got %d", n)
	}
}

func TestSubscriberFunc(t *testing.T) {
	bus := NewBus()
	var got []EventType
	bus.Subscribe(SubscriberFunc(func(ev Event) { got = append(got, ev.Type) }), EvVoteChanged)

	bus.Emit(Event{Type: EvVoteChanged})
	bus.Emit(Event{Type: EvVoteChanged})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestMonthOf(t *testing.T) {
	local := time.Date(2012, 12, 1, 0, 30, 0, 0, time.FixedZone("", 3600))
	m := MonthOf(4, local)
	if m.Year != 2012 || m.Month != time.November || m.ListID != 4 {
		t.Errorf("expected 2012-11 of list 4, got %+v", m)
	}
}
