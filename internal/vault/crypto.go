// Package vault provides security primitives: AES-GCM sealing of opaque tokens
// and self-signed TLS certificate generation.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
)

// ErrMalformed is returned by Open for input that was not produced by Seal with the same key.
var ErrMalformed = errors.New("malformed or tampered ciphertext")

// Sealer encrypts and authenticates small payloads with a 32-byte key.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer builds a Sealer. The key must be 16, 24 or 32 bytes long.
func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	// GCM is a standard mode that provides authenticated encryption
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create gcm")
	}
	return &Sealer{gcm: gcm}, nil
}

// Seal encrypts plaintext and returns it as URL-safe base64 with the nonce prepended.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "read nonce")
	}
	ciphertext := s.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal.
func (s *Sealer) Open(token string) ([]byte, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrMalformed
	}
	nonceSize := s.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrMalformed
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, ErrMalformed
	}
	return plaintext, nil
}

// NewKey returns a random 32-byte key.
func NewKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, errors.Wrap(err, "generate key")
	}
	return key, nil
}
