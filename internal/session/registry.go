package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suteetoe/strategy-service/internal/authstate"
	metrics "github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrUnknownSession is returned when no monitor exists for a session id
	ErrUnknownSession = errors.New("unknown session")
	// ErrNoSession is returned when the session exists but is not active
	ErrNoSession = errors.New("session is not active")
	// ErrRegistryClosed is returned once the registry has been closed
	ErrRegistryClosed = errors.New("session registry closed")
)

// SessionStore is the persistent side of sessions
type SessionStore interface {
	// LookupSession returns the session when it exists and has not ended.
	LookupSession(ctx context.Context, id string) (*Info, error)
	EndSession(ctx context.Context, id string, reason EndReason) error
}

// sessionBackend binds a SessionStore to one session id
type sessionBackend struct {
	store SessionStore
	id    string
}

func (b sessionBackend) CurrentSession(ctx context.Context) (*Info, error) {
	return b.store.LookupSession(ctx, b.id)
}

func (b sessionBackend) SignOut(ctx context.Context, reason EndReason) error {
	return b.store.EndSession(ctx, b.id, reason)
}

// forgetTimeout bounds the store call made when an expired session is retried
const forgetTimeout = 10 * time.Second

// RegistryConfig configures a Registry
type RegistryConfig struct {
	IdleTimeout time.Duration
	SignInPath  string
	InboxSize   int
	// Retention is how long a logged-out monitor is kept so the client can
	// still collect its expiry notification.
	Retention time.Duration
	Clock     Clock
	Logger    *zap.Logger
}

type entry struct {
	monitor *Monitor
	bus     *Bus
	inbox   *Inbox
	forget  Timer
}

// Registry owns one Monitor per session id
type Registry struct {
	store SessionStore
	cfg   RegistryConfig

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewRegistry creates an empty registry
func NewRegistry(store SessionStore, cfg RegistryConfig) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/auth"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = cfg.IdleTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		store:   store,
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

func (r *Registry) newEntry(id string) *entry {
	bus := NewBus()
	inbox := NewInbox(r.cfg.InboxSize)
	store := authstate.NewStore()
	e := &entry{bus: bus, inbox: inbox}
	e.monitor = NewMonitor(sessionBackend{store: r.store, id: id}, bus, inbox, inbox,
		WithClock(r.cfg.Clock),
		WithIdleTimeout(r.cfg.IdleTimeout),
		WithSignInPath(r.cfg.SignInPath),
		WithStore(store),
		WithLogger(r.cfg.Logger.With(zap.String("session_id", id))),
	)
	store.Subscribe(func(prev, next authstate.State) {
		r.onTransition(id, e, prev, next)
	})
	return e
}

// Open starts monitoring a freshly signed-in session
func (r *Registry) Open(info Info) *Monitor {
	r.mu.Lock()
	e, ok := r.entries[info.SessionID]
	if !ok {
		e = r.newEntry(info.SessionID)
		r.entries[info.SessionID] = e
	}
	r.mu.Unlock()

	e.monitor.SignIn(info)
	return e.monitor
}

// Ensure returns the monitor for id. When none exists it asks the session
// store whether the session is still live and starts a monitor for it.
func (r *Registry) Ensure(ctx context.Context, id string) (*Monitor, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	closed := r.closed
	r.mu.Unlock()
	if ok {
		return e.monitor, nil
	}
	if closed {
		return nil, ErrRegistryClosed
	}

	e = r.newEntry(id)
	if err := e.monitor.Start(ctx); err != nil {
		return nil, err
	}
	if e.monitor.Status() != authstate.StatusActive {
		return nil, ErrNoSession
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		e.monitor.Close()
		return nil, ErrRegistryClosed
	}
	if existing, ok := r.entries[id]; ok {
		r.mu.Unlock()
		e.monitor.Close()
		return existing.monitor, nil
	}
	r.entries[id] = e
	r.mu.Unlock()

	return e.monitor, nil
}

// Lookup returns the monitor for id without creating one
func (r *Registry) Lookup(id string) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.monitor, true
}

// Publish delivers an activity event to the session's monitor
func (r *Registry) Publish(id string, kind EventKind) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	if e.bus.Publish(Event{Kind: kind, At: r.cfg.Clock.Now()}) == 0 {
		return ErrNoSession
	}
	return nil
}

// SignOut ends the session on user request and returns what the client
// should display and where it should go next.
func (r *Registry) SignOut(ctx context.Context, id string) ([]Notification, string, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, "", ErrUnknownSession
	}

	err := e.monitor.SignOut(ctx)
	notifications, redirect := e.inbox.Drain()
	return notifications, redirect, err
}

// Drain returns the pending notifications and redirect of a session. A
// transition still in progress, such as an expiry waiting on the store, is
// allowed to finish first so its notification is not missed.
func (r *Registry) Drain(id string) ([]Notification, string, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, "", false
	}

	e.monitor.settle()
	notifications, redirect := e.inbox.Drain()
	return notifications, redirect, true
}

// Forget drops a monitor that is no longer active. An expired session the
// store could not end is retried first and kept for another retention period
// when that fails again, so it cannot be picked up as live by Ensure.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok || e.monitor.Status() == authstate.StatusActive {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
	defer cancel()
	if err := e.monitor.RetrySignOut(ctx); err != nil {
		r.cfg.Logger.Warn("Keeping expired session until it can be ended",
			zap.String("session_id", id), zap.Error(err))
		r.mu.Lock()
		if current, ok := r.entries[id]; ok && current == e {
			if e.forget != nil {
				e.forget.Stop()
			}
			e.forget = r.cfg.Clock.AfterFunc(r.cfg.Retention, func() { r.Forget(id) })
		}
		r.mu.Unlock()
		return
	}
	r.remove(id, e)
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops every monitor without ending the sessions in the store
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.monitor.Close()
	}

	r.mu.Lock()
	for id, e := range r.entries {
		if e.forget != nil {
			e.forget.Stop()
		}
		delete(r.entries, id)
	}
	r.mu.Unlock()
}

func (r *Registry) onTransition(id string, e *entry, prev, next authstate.State) {
	metrics.RecordSessionTransition(string(next.Status))
	if prev.Status != authstate.StatusActive && next.Status == authstate.StatusActive {
		metrics.ActiveSessionsGauge.Inc()
	}
	if prev.Status == authstate.StatusActive && next.Status != authstate.StatusActive {
		metrics.ActiveSessionsGauge.Dec()
	}

	switch next.Status {
	case authstate.StatusUnauthenticated:
		r.remove(id, e)
	case authstate.StatusLoggedOut:
		r.mu.Lock()
		if e.forget != nil {
			e.forget.Stop()
		}
		e.forget = r.cfg.Clock.AfterFunc(r.cfg.Retention, func() { r.Forget(id) })
		r.mu.Unlock()
	case authstate.StatusActive:
		r.mu.Lock()
		if e.forget != nil {
			e.forget.Stop()
			e.forget = nil
		}
		r.mu.Unlock()
	}
}

func (r *Registry) remove(id string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[id]; ok && current == e {
		if e.forget != nil {
			e.forget.Stop()
			e.forget = nil
		}
		delete(r.entries, id)
	}
}
