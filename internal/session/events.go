package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventKind names a user input event reported by the browser
type EventKind string

const (
	EventPointerDown EventKind = "pointerdown"
	EventKeyPress    EventKind = "keypress"
	EventScroll      EventKind = "scroll"
	EventTouchStart  EventKind = "touchstart"
)

// ActivityEvents is the fixed set of events that count as user activity
var ActivityEvents = []EventKind{EventPointerDown, EventKeyPress, EventScroll, EventTouchStart}

// ParseEventKind maps a DOM event name onto an EventKind.
// "mousedown" is accepted as a synonym of "pointerdown".
func ParseEventKind(name string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pointerdown", "mousedown":
		return EventPointerDown, nil
	case "keypress", "keydown":
		return EventKeyPress, nil
	case "scroll":
		return EventScroll, nil
	case "touchstart":
		return EventTouchStart, nil
	}
	return "", fmt.Errorf("unsupported activity event %q", name)
}

// Event is one observed input event
type Event struct {
	Kind EventKind
	At   time.Time
}

// EventSource delivers input events to subscribed listeners
type EventSource interface {
	// Subscribe registers fn for the given kinds and returns the function that
	// removes the registration.
	Subscribe(kinds []EventKind, fn func(Event)) (unsubscribe func())
}

type listener struct {
	id    int
	kinds map[EventKind]struct{}
	fn    func(Event)
}

// Bus is an in-process EventSource that the HTTP layer publishes into
type Bus struct {
	mu        sync.Mutex
	listeners []listener
	nextID    int
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe implements EventSource
func (b *Bus) Subscribe(kinds []EventKind, fn func(Event)) func() {
	set := make(map[EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, listener{id: id, kinds: set, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, l := range b.listeners {
				if l.id == id {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to every listener registered for its kind and returns
// how many listeners received it.
func (b *Bus) Publish(ev Event) int {
	b.mu.Lock()
	var targets []func(Event)
	for _, l := range b.listeners {
		if _, ok := l.kinds[ev.Kind]; ok {
			targets = append(targets, l.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
	return len(targets)
}

// ListenerCount returns the number of registered listeners
func (b *Bus) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
