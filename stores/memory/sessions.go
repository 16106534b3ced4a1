package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gnanirahulnutakki/authcore"
)

// SessionStore keeps session rows keyed by ID with a digest index for
// token lookup.
type SessionStore struct {
	mu       sync.RWMutex
	byID     map[string]*authcore.Session
	byDigest map[string]string // token digest -> session id
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:     make(map[string]*authcore.Session),
		byDigest: make(map[string]string),
	}
}

func (s *SessionStore) Create(_ context.Context, session *authcore.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneSession(session)
	s.byID[session.ID] = clone
	s.byDigest[session.TokenDigest] = session.ID
	return nil
}

func (s *SessionStore) GetByDigest(_ context.Context, digest string) (*authcore.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDigest[digest]
	if !ok {
		return nil, nil
	}
	return cloneSession(s.byID[id]), nil
}

func (s *SessionStore) GetByID(_ context.Context, id string) (*authcore.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(session), nil
}

func (s *SessionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.byID[id]; ok {
		session.LastActiveAt = at
	}
	return nil
}

func (s *SessionStore) Revoke(_ context.Context, id, reason, by string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[id]
	if !ok || session.Revoked {
		return false, nil
	}
	revoke(session, reason, by, at)
	return true, nil
}

func (s *SessionStore) RevokeAllForUser(_ context.Context, userID, reason, by string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, session := range s.byID {
		if session.UserID != userID || session.Revoked {
			continue
		}
		revoke(session, reason, by, at)
		count++
	}
	return count, nil
}

func revoke(session *authcore.Session, reason, by string, at time.Time) {
	session.Revoked = true
	session.RevokedReason = reason
	session.RevokedBy = by
	stamp := at
	session.RevokedAt = &stamp
}

func cloneSession(s *authcore.Session) *authcore.Session {
	clone := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		clone.RevokedAt = &t
	}
	return &clone
}
