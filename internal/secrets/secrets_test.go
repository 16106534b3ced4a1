package secrets

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	cipher, err := New("deployment-key")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	plaintext := []byte("twenty-byte-totp-seed")
	sealed, err := cipher.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("ciphertext contains plaintext")
	}

	opened, err := cipher.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: %q != %q", opened, plaintext)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	cipher, _ := New("deployment-key")

	first, err := cipher.Seal([]byte("same"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	second, err := cipher.Seal([]byte("same"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("two seals of the same plaintext must differ by nonce")
	}
}

func TestOpenRejectsTamper(t *testing.T) {
	cipher, _ := New("deployment-key")

	sealed, err := cipher.Seal([]byte("seed"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01
	if _, err := cipher.Open(sealed); err == nil {
		t.Fatal("tampered ciphertext opened")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	cipher, _ := New("deployment-key")
	other, _ := New("different-key")

	sealed, err := cipher.Seal([]byte("seed"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := other.Open(sealed); err == nil {
		t.Fatal("ciphertext opened under the wrong key")
	}
}

func TestOpenRejectsTruncated(t *testing.T) {
	cipher, _ := New("deployment-key")
	if _, err := cipher.Open([]byte("short")); err == nil {
		t.Fatal("truncated input opened")
	}
}

func TestNewRejectsEmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("empty key accepted")
	}
}
