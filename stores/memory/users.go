package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gnanirahulnutakki/authcore"
)

// UserStore is a mutex-guarded map of users with secondary indexes on
// username and email. RecordLoginFailure performs its increment-and-check
// under the same lock, which is what makes it atomic here.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*authcore.User
	byName  map[string]string // username -> id
	byEmail map[string]string // email -> id
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*authcore.User),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := strings.ToLower(user.Username)
	if _, ok := s.byName[nameKey]; ok {
		return authcore.ErrUserExists
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return authcore.ErrUserExists
	}

	clone := cloneUser(user)
	s.byID[user.ID] = clone
	s.byName[nameKey] = user.ID
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *UserStore) GetByIdentifier(_ context.Context, identifier string) (*authcore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[strings.ToLower(identifier)]
	if !ok {
		id, ok = s.byEmail[identifier]
	}
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *UserStore) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return 0, nil, authcore.ErrUserNotFound
	}

	user.FailedAttempts++
	if user.FailedAttempts >= maxAttempts && (user.LockedUntil == nil || !user.LockedUntil.After(now)) {
		until := now.Add(lockFor)
		user.LockedUntil = &until
	}
	user.UpdatedAt = now

	var lockedUntil *time.Time
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		u := *user.LockedUntil
		lockedUntil = &u
	}
	return user.FailedAttempts, lockedUntil, nil
}

func (s *UserStore) ResetLoginFailures(_ context.Context, id string, lastLogin time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	login := lastLogin
	user.LastLoginAt = &login
	user.UpdatedAt = lastLogin
	return nil
}

func (s *UserStore) UpdatePassword(_ context.Context, id, hash string, history []string, mustChange bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	user.PasswordHash = hash
	user.PasswordHistory = append([]string(nil), history...)
	user.MustChangePassword = mustChange
	user.UpdatedAt = now
	return nil
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, id, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	user.PasswordHash = hash
	user.UpdatedAt = now
	return nil
}

// SetActive flips the active flag. Not part of the authcore store
// contract; exists for tests and admin tooling.
func (s *UserStore) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byID[id]; ok {
		user.Active = active
	}
}

func cloneUser(u *authcore.User) *authcore.User {
	clone := *u
	clone.PasswordHistory = append([]string(nil), u.PasswordHistory...)
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		clone.LockedUntil = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		clone.LastLoginAt = &t
	}
	return &clone
}
