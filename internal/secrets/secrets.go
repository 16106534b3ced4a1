// Package secrets provides the at-rest cipher for per-user secret material
// (the TOTP seed). One deployment-wide key, AES-256-GCM, random nonce
// prepended to the ciphertext.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
)

var errCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// Cipher encrypts and decrypts short secret values. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a 256-bit AES key from the deployment key string and returns
// a ready Cipher. The derivation is a plain SHA-256 of the key material;
// the deployment key is expected to be high entropy already.
func New(deploymentKey string) (*Cipher, error) {
	if deploymentKey == "" {
		return nil, errors.New("empty encryption key")
	}

	key := sha256.Sum256([]byte(deploymentKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, errCiphertextTooShort
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}
