package authcore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// In-package store mocks for the engine tests, mirroring the semantics of
// stores/memory without importing it.

type mockUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byName  map[string]string
	byEmail map[string]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byID:    make(map[string]*User),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
	}
}

func (s *mockUserStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := strings.ToLower(user.Username)
	if _, ok := s.byName[nameKey]; ok {
		return ErrUserExists
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return ErrUserExists
	}

	s.byID[user.ID] = copyUser(user)
	s.byName[nameKey] = user.ID
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *mockUserStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s *mockUserStore) GetByIdentifier(_ context.Context, identifier string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[strings.ToLower(identifier)]
	if !ok {
		id, ok = s.byEmail[identifier]
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(s.byID[id]), nil
}

func (s *mockUserStore) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return 0, nil, ErrUserNotFound
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

func (s *mockUserStore) ResetLoginFailures(_ context.Context, id string, lastLogin time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	login := lastLogin
	user.LastLoginAt = &login
	user.UpdatedAt = lastLogin
	return nil
}

func (s *mockUserStore) UpdatePassword(_ context.Context, id, hash string, history []string, mustChange bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = hash
	user.PasswordHistory = append([]string(nil), history...)
	user.MustChangePassword = mustChange
	user.UpdatedAt = now
	return nil
}

func (s *mockUserStore) UpdatePasswordHash(_ context.Context, id, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = hash
	user.UpdatedAt = now
	return nil
}

func (s *mockUserStore) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byID[id]; ok {
		user.Active = active
	}
}

func copyUser(u *User) *User {
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

type mockSessionStore struct {
	mu       sync.Mutex
	byID     map[string]*Session
	byDigest map[string]string
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		byID:     make(map[string]*Session),
		byDigest: make(map[string]string),
	}
}

func (s *mockSessionStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[session.ID] = copySession(session)
	s.byDigest[session.TokenDigest] = session.ID
	return nil
}

func (s *mockSessionStore) GetByDigest(_ context.Context, digest string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byDigest[digest]
	if !ok {
		return nil, nil
	}
	return copySession(s.byID[id]), nil
}

func (s *mockSessionStore) GetByID(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return copySession(session), nil
}

func (s *mockSessionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.byID[id]; ok {
		session.LastActiveAt = at
	}
	return nil
}

func (s *mockSessionStore) Revoke(_ context.Context, id, reason, by string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[id]
	if !ok || session.Revoked {
		return false, nil
	}
	markRevoked(session, reason, by, at)
	return true, nil
}

func (s *mockSessionStore) RevokeAllForUser(_ context.Context, userID, reason, by string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, session := range s.byID {
		if session.UserID != userID || session.Revoked {
			continue
		}
		markRevoked(session, reason, by, at)
		count++
	}
	return count, nil
}

func markRevoked(session *Session, reason, by string, at time.Time) {
	session.Revoked = true
	session.RevokedReason = reason
	session.RevokedBy = by
	stamp := at
	session.RevokedAt = &stamp
}

func copySession(s *Session) *Session {
	clone := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		clone.RevokedAt = &t
	}
	return &clone
}

type mockTwoFactorStore struct {
	mu     sync.Mutex
	byUser map[string]*TwoFactorRecord
}

func newMockTwoFactorStore() *mockTwoFactorStore {
	return &mockTwoFactorStore{byUser: make(map[string]*TwoFactorRecord)}
}

func (s *mockTwoFactorStore) Get(_ context.Context, userID string) (*TwoFactorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byUser[userID]
	if !ok {
		return nil, nil
	}
	return copyRecord(record), nil
}

func (s *mockTwoFactorStore) Save(_ context.Context, record *TwoFactorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byUser[record.UserID] = copyRecord(record)
	return nil
}

func (s *mockTwoFactorStore) ConsumeBackupCode(_ context.Context, userID, codeID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byUser[userID]
	if !ok {
		return false, nil
	}
	for i := range record.BackupCodes {
		if record.BackupCodes[i].ID != codeID {
			continue
		}
		if record.BackupCodes[i].Used {
			return false, nil
		}
		record.BackupCodes[i].Used = true
		stamp := at
		record.BackupCodes[i].UsedAt = &stamp
		record.UpdatedAt = at
		return true, nil
	}
	return false, nil
}

func (s *mockTwoFactorStore) SetLastCounter(_ context.Context, userID string, counter int64, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	record.LastCounter = counter
	stamp := verifiedAt
	record.LastVerifiedAt = &stamp
	record.UpdatedAt = verifiedAt
	return nil
}

func (s *mockTwoFactorStore) ReplaceTrustedDevices(_ context.Context, userID string, devices []TrustedDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	record.TrustedDevices = append([]TrustedDevice(nil), devices...)
	return nil
}

func copyRecord(r *TwoFactorRecord) *TwoFactorRecord {
	clone := *r
	clone.SecretCiphertext = append([]byte(nil), r.SecretCiphertext...)
	clone.BackupCodes = append([]BackupCode(nil), r.BackupCodes...)
	clone.TrustedDevices = append([]TrustedDevice(nil), r.TrustedDevices...)
	if r.EnabledAt != nil {
		t := *r.EnabledAt
		clone.EnabledAt = &t
	}
	if r.DisabledAt != nil {
		t := *r.DisabledAt
		clone.DisabledAt = &t
	}
	if r.LastVerifiedAt != nil {
		t := *r.LastVerifiedAt
		clone.LastVerifiedAt = &t
	}
	return &clone
}
