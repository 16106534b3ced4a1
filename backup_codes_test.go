package authcore

import (
	"strings"
	"testing"
	"time"

	"github.com/gnanirahulnutakki/authcore/password"
)

func backupTestHasher(t *testing.T) *password.Hasher {
	t.Helper()
	hasher, err := password.NewHasher(password.Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return hasher
}

func TestGenerateBackupCodesFormat(t *testing.T) {
	hasher := backupTestHasher(t)

	display, records, err := generateBackupCodes(hasher, 8)
	if err != nil {
		t.Fatalf("generateBackupCodes failed: %v", err)
	}
	if len(display) != 8 || len(records) != 8 {
		t.Fatalf("expected 8 codes, got %d/%d", len(display), len(records))
	}

	seen := make(map[string]bool)
	for i, code := range display {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("unexpected format %q", code)
		}
		for _, r := range strings.ReplaceAll(code, "-", "") {
			if !strings.ContainsRune(backupCodeAlphabet, r) {
				t.Fatalf("character %q outside alphabet in %q", r, code)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true

		if records[i].ID == "" || records[i].Hash == "" || records[i].Used {
			t.Fatalf("bad record %+v", records[i])
		}
	}
}

func TestVerifyBackupCodeMatchesCanonicalForms(t *testing.T) {
	hasher := backupTestHasher(t)
	display, records, err := generateBackupCodes(hasher, 2)
	if err != nil {
		t.Fatalf("generateBackupCodes failed: %v", err)
	}

	variants := []string{
		display[0],
		strings.ToLower(display[0]),
		strings.ReplaceAll(display[0], "-", ""),
		" " + strings.ReplaceAll(display[0], "-", " ") + " ",
	}
	for _, input := range variants {
		id, ok := verifyBackupCode(hasher, records, canonicalizeBackupCode(input))
		if !ok {
			t.Errorf("variant %q did not verify", input)
		}
		if ok && id != records[0].ID {
			t.Errorf("variant %q matched wrong record", input)
		}
	}

	if _, ok := verifyBackupCode(hasher, records, canonicalizeBackupCode("AAAA-AAAA")); ok {
		t.Error("bogus code verified")
	}
}

func TestVerifyBackupCodeSkipsUsed(t *testing.T) {
	hasher := backupTestHasher(t)
	display, records, err := generateBackupCodes(hasher, 1)
	if err != nil {
		t.Fatalf("generateBackupCodes failed: %v", err)
	}

	canonical := canonicalizeBackupCode(display[0])
	if _, ok := verifyBackupCode(hasher, records, canonical); !ok {
		t.Fatal("fresh code did not verify")
	}

	records = markUsed(records, records[0].ID, time.Now())
	if !records[0].Used || records[0].UsedAt == nil {
		t.Fatal("markUsed did not stamp the record")
	}
	if _, ok := verifyBackupCode(hasher, records, canonical); ok {
		t.Fatal("used record must never verify, even with the right plaintext")
	}
}

func TestUnusedBackupCodesCount(t *testing.T) {
	record := TwoFactorRecord{BackupCodes: []BackupCode{
		{ID: "a"}, {ID: "b", Used: true}, {ID: "c"},
	}}
	if got := record.UnusedBackupCodes(); got != 2 {
		t.Fatalf("UnusedBackupCodes = %d, want 2", got)
	}
}
