package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	stops  int
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.clock.stops++
	return true
}

// Advance moves time forward by d, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of timers neither stopped nor fired.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

type fakeBackend struct {
	mu         sync.Mutex
	current    *Info
	lookupErr  error
	signOutErr error
	signOuts   []EndReason
}

func (b *fakeBackend) CurrentSession(ctx context.Context) (*Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lookupErr != nil {
		return nil, b.lookupErr
	}
	return b.current, nil
}

func (b *fakeBackend) SignOut(ctx context.Context, reason EndReason) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signOuts = append(b.signOuts, reason)
	return b.signOutErr
}

func (b *fakeBackend) SignOutCalls() []EndReason {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]EndReason(nil), b.signOuts...)
}

type recorder struct {
	mu            sync.Mutex
	notifications []Notification
	navigations   []string
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigations = append(r.navigations, path)
}

func (r *recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		titles = append(titles, n.Title)
	}
	return titles
}

func (r *recorder) Navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.navigations...)
}

type fakeSessionStore struct {
	mu    sync.Mutex
	live  map[string]Info
	ended map[string]EndReason
	err   error
	// beforeEnd runs at the start of EndSession, outside the lock
	beforeEnd func()
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{live: map[string]Info{}, ended: map[string]EndReason{}}
}

func (s *fakeSessionStore) add(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[info.SessionID] = info
}

func (s *fakeSessionStore) LookupSession(ctx context.Context, id string) (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.live[id]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (s *fakeSessionStore) EndSession(ctx context.Context, id string, reason EndReason) error {
	if s.beforeEnd != nil {
		s.beforeEnd()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.live[id]; !ok {
		return errors.New("session not found")
	}
	delete(s.live, id)
	s.ended[id] = reason
	return nil
}

func (s *fakeSessionStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSessionStore) endReason(id string) (EndReason, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ended[id]
	return r, ok
}
