package repository

import (
	"context"
	"errors"
	"time"

	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/session"
)

type sessionRecords interface {
	SessionRepository
	FindUserByID(ctx context.Context, id uint) (*model.User, error)
}

// SessionStore adapts the session table to session.SessionStore
type SessionStore struct {
	records     sessionRecords
	idleTimeout time.Duration
	now         func() time.Time
}

// NewSessionStore wraps repo for use by a session.Registry. A session whose
// last recorded activity is idleTimeout or more in the past counts as ended.
func NewSessionStore(repo sessionRecords, idleTimeout time.Duration) *SessionStore {
	if idleTimeout <= 0 {
		idleTimeout = session.DefaultIdleTimeout
	}
	return &SessionStore{records: repo, idleTimeout: idleTimeout, now: time.Now}
}

// LookupSession returns the session when it exists, has not ended and has
// not been idle for the whole timeout. An idle session found here, such as
// one left behind by a restart or a failed sign-out, is ended as expired.
func (s *SessionStore) LookupSession(ctx context.Context, id string) (*session.Info, error) {
	record, err := s.records.FindSession(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !record.Active() {
		return nil, nil
	}
	if !record.LastActivityAt.Add(s.idleTimeout).After(s.now()) {
		if err := s.EndSession(ctx, record.ID, session.ReasonExpired); err != nil {
			return nil, err
		}
		return nil, nil
	}

	user, err := s.records.FindUserByID(ctx, record.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &session.Info{SessionID: record.ID, UserID: user.ID, Email: user.Email}, nil
}

// EndSession records the end of a session. A session that already ended is
// left as it is.
func (s *SessionStore) EndSession(ctx context.Context, id string, reason session.EndReason) error {
	err := s.records.EndSession(ctx, id, string(reason), s.now())
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
