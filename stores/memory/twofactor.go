package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gnanirahulnutakki/authcore"
)

var errTooManyDevices = errors.New("memory: trusted device list exceeds cap")

// TwoFactorStore holds one record per user. ConsumeBackupCode flips the
// used flag under the store lock, so a code can be consumed exactly once
// even under concurrent verification attempts.
type TwoFactorStore struct {
	mu     sync.RWMutex
	byUser map[string]*authcore.TwoFactorRecord
	devCap int
	capSet bool
}

func NewTwoFactorStore() *TwoFactorStore {
	return &TwoFactorStore{byUser: make(map[string]*authcore.TwoFactorRecord)}
}

// WithDeviceCap makes ReplaceTrustedDevices reject lists longer than n.
func (s *TwoFactorStore) WithDeviceCap(n int) *TwoFactorStore {
	s.devCap = n
	s.capSet = true
	return s
}

func (s *TwoFactorStore) Get(_ context.Context, userID string) (*authcore.TwoFactorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byUser[userID]
	if !ok {
		return nil, nil
	}
	return cloneRecord(record), nil
}

func (s *TwoFactorStore) Save(_ context.Context, record *authcore.TwoFactorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byUser[record.UserID] = cloneRecord(record)
	return nil
}

func (s *TwoFactorStore) ConsumeBackupCode(_ context.Context, userID, codeID string, at time.Time) (bool, error) {
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

func (s *TwoFactorStore) SetLastCounter(_ context.Context, userID string, counter int64, verifiedAt time.Time) error {
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

func (s *TwoFactorStore) ReplaceTrustedDevices(_ context.Context, userID string, devices []authcore.TrustedDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capSet && len(devices) > s.devCap {
		return errTooManyDevices
	}
	record, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	record.TrustedDevices = append([]authcore.TrustedDevice(nil), devices...)
	return nil
}

func cloneRecord(r *authcore.TwoFactorRecord) *authcore.TwoFactorRecord {
	clone := *r
	clone.SecretCiphertext = append([]byte(nil), r.SecretCiphertext...)
	clone.BackupCodes = append([]authcore.BackupCode(nil), r.BackupCodes...)
	clone.TrustedDevices = append([]authcore.TrustedDevice(nil), r.TrustedDevices...)
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
