package authcore

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gnanirahulnutakki/authcore/password"
)

// backupCodeAlphabet omits 0/O and 1/I to keep hand-typed codes unambiguous.
const backupCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const backupCodeGroup = 4

// generateBackupCodes mints count fresh codes formatted as two four-character
// groups ("K3TZ-9QMW") and their Argon2id digests. The plaintext slice is
// returned to the caller for one-time display; only the records persist.
func generateBackupCodes(hasher *password.Hasher, count int) ([]string, []BackupCode, error) {
	codes := make([]string, 0, count)
	records := make([]BackupCode, 0, count)

	for i := 0; i < count; i++ {
		raw, err := randomCode(2 * backupCodeGroup)
		if err != nil {
			return nil, nil, err
		}

		display := raw[:backupCodeGroup] + "-" + raw[backupCodeGroup:]
		digest, err := hasher.Hash(raw)
		if err != nil {
			return nil, nil, err
		}

		codes = append(codes, display)
		records = append(records, BackupCode{
			ID:   uuid.NewString(),
			Hash: digest,
		})
	}

	return codes, records, nil
}

// canonicalizeBackupCode strips formatting separators and whitespace and
// uppercases, so "k3tz 9qmw" and "K3TZ-9QMW" verify identically.
func canonicalizeBackupCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		switch r {
		case '-', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// verifyBackupCode checks canonical against the unused records and returns
// the matching record ID. Used entries are skipped entirely, so a consumed
// code can never verify again even if the row still exists.
func verifyBackupCode(hasher *password.Hasher, records []BackupCode, canonical string) (string, bool) {
	for _, rec := range records {
		if rec.Used {
			continue
		}
		ok, err := hasher.Verify(canonical, rec.Hash)
		if err == nil && ok {
			return rec.ID, true
		}
	}
	return "", false
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = backupCodeAlphabet[int(b)%len(backupCodeAlphabet)]
	}
	return string(out), nil
}

func markUsed(records []BackupCode, id string, at time.Time) []BackupCode {
	for i := range records {
		if records[i].ID == id {
			records[i].Used = true
			t := at
			records[i].UsedAt = &t
		}
	}
	return records
}
