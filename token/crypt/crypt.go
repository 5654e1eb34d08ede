// Package crypt encrypts opaque payloads such as refresh tokens with a
// server-held symmetric key or passphrase.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrDecrypt is returned for tampered, truncated or foreign ciphertexts.
var ErrDecrypt = errors.New("crypt: unable to decrypt payload")

// Encrypter seals and opens payloads into URL-safe strings.
type Encrypter interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// KeyEncrypter uses AES-256-GCM with a fixed key. Output is
// base64url(nonce || ciphertext).
type KeyEncrypter struct {
	aead cipher.AEAD
}

var _ Encrypter = (*KeyEncrypter)(nil)

func NewKeyEncrypter(key []byte) (*KeyEncrypter, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &KeyEncrypter{aead: aead}, nil
}

func (e *KeyEncrypter) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *KeyEncrypter) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecrypt
	}
	return open(e.aead, raw)
}

// ParseKey accepts a key as standard or URL-safe base64, or as a raw
// 32-character string.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil && len(key) == KeySize {
			return key, nil
		}
	}
	if len(encoded) == KeySize {
		return []byte(encoded), nil
	}
	return nil, fmt.Errorf("encryption key must decode to %d bytes", KeySize)
}

// GenerateKey returns a random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}

func open(aead cipher.AEAD, raw []byte) ([]byte, error) {
	if len(raw) < aead.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
