// Package session keeps an authenticated session alive only while the user is
// interactively active and signs it out after a fixed idle period.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/suteetoe/strategy-service/internal/authstate"
	"go.uber.org/zap"
)

// DefaultIdleTimeout is the inactivity period after which a session expires
const DefaultIdleTimeout = 30 * time.Minute

// EndReason records why a session ended
type EndReason string

const (
	ReasonSignedOut EndReason = "signed_out"
	ReasonExpired   EndReason = "expired"
)

// Info identifies the session a monitor is watching
type Info struct {
	SessionID string
	UserID    uint
	Email     string
}

// Backend is the authentication service the monitor signs out against
type Backend interface {
	// CurrentSession returns the live session, or nil when there is none.
	CurrentSession(ctx context.Context) (*Info, error)
	SignOut(ctx context.Context, reason EndReason) error
}

// Option configures a Monitor
type Option func(*Monitor)

// WithClock overrides the clock used to schedule the idle timer
func WithClock(c Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithIdleTimeout overrides DefaultIdleTimeout
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithSignInPath overrides the route used after sign-out
func WithSignInPath(p string) Option {
	return func(m *Monitor) { m.signInPath = p }
}

// WithStore publishes every state change into s
func WithStore(s *authstate.Store) Option {
	return func(m *Monitor) { m.store = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithSignOutTimeout bounds the backend call made when the idle timer fires
func WithSignOutTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.signOutTimeout = d }
}

// Monitor is the idle-timeout state machine of one session.
//
// Activity listeners are registered only while the monitor is active, and at
// most one idle timer is pending at any time. Transitions run one at a time and
// reach the store in the order they happened.
type Monitor struct {
	backend  Backend
	events   EventSource
	nav      Navigator
	notifier Notifier

	clock          Clock
	store          *authstate.Store
	log            *zap.Logger
	idleTimeout    time.Duration
	signInPath     string
	signOutTimeout time.Duration

	// transition is held for the whole of a transition, backend call and
	// store publication included. mu guards the fields below it.
	transition sync.Mutex

	mu          sync.Mutex
	status      authstate.Status
	info        Info
	timer       Timer
	generation  uint64
	expiresAt   time.Time
	unsubscribe func()
	signingOut  bool
	// endPending is set when the backend could not end an expired session
	endPending bool
}

// NewMonitor creates a monitor in the unauthenticated state
func NewMonitor(backend Backend, events EventSource, nav Navigator, notifier Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		backend:        backend,
		events:         events,
		nav:            nav,
		notifier:       notifier,
		clock:          RealClock{},
		log:            zap.NewNop(),
		idleTimeout:    DefaultIdleTimeout,
		signInPath:     "/auth",
		signOutTimeout: 10 * time.Second,
		status:         authstate.StatusUnauthenticated,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = authstate.NewStore()
	}
	return m
}

// Start looks for an existing session and becomes active when one is found.
// Having no session is not an error; the monitor stays unauthenticated.
func (m *Monitor) Start(ctx context.Context) error {
	info, err := m.backend.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}
	m.SignIn(*info)
	return nil
}

// SignIn makes the monitor active for info and arms the idle timer
func (m *Monitor) SignIn(info Info) {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	m.info = info
	m.status = authstate.StatusActive
	m.endPending = false
	if m.unsubscribe == nil {
		m.unsubscribe = m.events.Subscribe(ActivityEvents, m.onActivity)
	}
	m.armLocked()
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.log.Info("Session active",
		zap.String("session_id", info.SessionID),
		zap.Duration("idle_timeout", m.idleTimeout))
	m.store.Set(state)
}

// SignOut ends the session on user request. On backend failure the user is
// notified, the monitor keeps its previous state and the error is returned.
func (m *Monitor) SignOut(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if m.status == authstate.StatusUnauthenticated {
		m.mu.Unlock()
		return nil
	}
	m.signingOut = true
	// Any timer callback already in flight is invalidated by the generation bump.
	m.stopTimerLocked()
	sessionID := m.info.SessionID
	m.mu.Unlock()

	if err := m.backend.SignOut(ctx, ReasonSignedOut); err != nil {
		m.log.Error("Sign-out failed", zap.String("session_id", sessionID), zap.Error(err))
		m.notifier.Notify(Notification{
			Title:       "Error signing out",
			Description: err.Error(),
			Variant:     VariantDestructive,
			At:          m.clock.Now(),
		})

		m.mu.Lock()
		m.signingOut = false
		if m.status == authstate.StatusActive {
			m.armLocked()
		}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.signingOut = false
	m.endPending = false
	m.detachLocked()
	m.status = authstate.StatusUnauthenticated
	m.info = Info{}
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.log.Info("Session signed out", zap.String("session_id", sessionID))
	m.store.Set(state)
	m.nav.Navigate(m.signInPath)
	m.notifier.Notify(Notification{
		Title:       "Signed out",
		Description: "You have been successfully signed out",
		Variant:     VariantDefault,
		At:          m.clock.Now(),
	})
	return nil
}

// Close cancels the timer and detaches listeners without calling the backend,
// leaving the session row untouched. It is used when the process shuts down or
// a duplicate monitor is discarded.
func (m *Monitor) Close() {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	m.detachLocked()
	if m.status == authstate.StatusUnauthenticated {
		m.mu.Unlock()
		return
	}
	m.status = authstate.StatusUnauthenticated
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.store.Set(state)
}

// Status returns the current state
func (m *Monitor) Status() authstate.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Info returns the watched session
func (m *Monitor) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// ExpiresAt returns when the pending idle timer fires; zero when none is armed
func (m *Monitor) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer == nil {
		return time.Time{}
	}
	return m.expiresAt
}

// Store returns the auth-state store the monitor publishes into
func (m *Monitor) Store() *authstate.Store {
	return m.store
}

// EndPending reports whether the session expired but the backend has not
// ended it yet.
func (m *Monitor) EndPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endPending
}

// RetrySignOut ends an expired session whose sign-out failed when the idle
// timer fired. It returns nil when there is nothing left to end.
func (m *Monitor) RetrySignOut(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	pending := m.endPending && m.status == authstate.StatusLoggedOut
	sessionID := m.info.SessionID
	m.mu.Unlock()
	if !pending {
		return nil
	}

	if err := m.backend.SignOut(ctx, ReasonExpired); err != nil {
		m.log.Warn("Retried sign-out after expiry failed", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}

	m.mu.Lock()
	m.endPending = false
	m.mu.Unlock()
	m.log.Info("Expired session ended", zap.String("session_id", sessionID))
	return nil
}

// settle waits for a transition in progress to finish
func (m *Monitor) settle() {
	m.transition.Lock()
	m.transition.Unlock()
}

func (m *Monitor) onActivity(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != authstate.StatusActive || m.signingOut {
		return
	}
	m.armLocked()
}

func (m *Monitor) expire(generation uint64) {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if generation != m.generation || m.status != authstate.StatusActive || m.signingOut {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.detachLocked()
	m.status = authstate.StatusLoggedOut
	m.endPending = true
	sessionID := m.info.SessionID
	state := m.snapshotLocked()
	m.mu.Unlock()

	m.log.Info("Session expired after inactivity",
		zap.String("session_id", sessionID),
		zap.Duration("idle_timeout", m.idleTimeout))
	m.store.Set(state)

	ctx, cancel := context.WithTimeout(context.Background(), m.signOutTimeout)
	defer cancel()

	if err := m.backend.SignOut(ctx, ReasonExpired); err != nil {
		m.log.Error("Sign-out after expiry failed", zap.String("session_id", sessionID), zap.Error(err))
		m.notifier.Notify(Notification{
			Title:       "Error signing out",
			Description: err.Error(),
			Variant:     VariantDestructive,
			At:          m.clock.Now(),
		})
		return
	}

	m.mu.Lock()
	m.endPending = false
	m.mu.Unlock()
	m.notifier.Notify(Notification{
		Title:       "Session expired",
		Description: "You have been logged out due to inactivity",
		Variant:     VariantDestructive,
		At:          m.clock.Now(),
	})
	m.nav.Navigate(m.signInPath)
}

// armLocked cancels the pending timer, if any, and arms a new one at full duration
func (m *Monitor) armLocked() {
	m.stopTimerLocked()
	generation := m.generation
	m.expiresAt = m.clock.Now().Add(m.idleTimeout)
	m.timer = m.clock.AfterFunc(m.idleTimeout, func() { m.expire(generation) })
}

func (m *Monitor) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
}

func (m *Monitor) detachLocked() {
	m.stopTimerLocked()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Monitor) snapshotLocked() authstate.State {
	return authstate.State{
		Status:    m.status,
		SessionID: m.info.SessionID,
		UserID:    m.info.UserID,
		Email:     m.info.Email,
		Since:     m.clock.Now(),
	}
}
