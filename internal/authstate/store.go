// Package authstate holds the authentication state of one session and
// notifies subscribers whenever it changes.
package authstate

import (
	"sync"
	"time"
)

// Status is the authentication status of a session
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusActive          Status = "active"
	StatusLoggedOut       Status = "logged_out"
)

// State is an immutable snapshot of a session's authentication state
type State struct {
	Status    Status    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    uint      `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Since     time.Time `json:"since"`
}

// Authenticated reports whether the state carries a live session
func (s State) Authenticated() bool {
	return s.Status == StatusActive
}

// Listener is called with the previous and the new state
type Listener func(prev, next State)

type subscription struct {
	id int
	fn Listener
}

// Store keeps the current State and fans changes out to subscribers
type Store struct {
	mu     sync.RWMutex
	state  State
	subs   []subscription
	nextID int
}

// NewStore creates a store in the unauthenticated state
func NewStore() *Store {
	return &Store{
		state: State{Status: StatusUnauthenticated},
	}
}

// Get returns the current state
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the state and notifies subscribers in subscription order.
// Listeners run on the caller's goroutine, after the store lock is released.
func (s *Store) Set(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(prev, next)
	}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is safe to call more than once.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// SubscriberCount returns the number of registered listeners
func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
