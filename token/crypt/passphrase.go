package crypt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const saltSize = 16

// ScryptParams tunes the passphrase key derivation.
type ScryptParams struct {
	N, R, P int
}

// DefaultScryptParams are the interactive-login parameters recommended by the scrypt paper.
var DefaultScryptParams = ScryptParams{N: 1 << 15, R: 8, P: 1}

// PassphraseEncrypter derives a fresh AES-256 key per payload from a
// passphrase and a random salt. Output is base64url(salt || nonce || ciphertext).
type PassphraseEncrypter struct {
	passphrase []byte
	params     ScryptParams
}

var _ Encrypter = (*PassphraseEncrypter)(nil)

func NewPassphraseEncrypter(passphrase string, params ScryptParams) (*PassphraseEncrypter, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if params.N == 0 {
		params = DefaultScryptParams
	}
	return &PassphraseEncrypter{passphrase: []byte(passphrase), params: params}, nil
}

func (e *PassphraseEncrypter) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key, err := e.deriveKey(salt)
	if err != nil {
		return "", err
	}
	inner, err := NewKeyEncrypter(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, inner.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := append(salt, inner.aead.Seal(nonce, nonce, plaintext, nil)...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (e *PassphraseEncrypter) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < saltSize {
		return nil, ErrDecrypt
	}
	key, err := e.deriveKey(raw[:saltSize])
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return open(aead, raw[saltSize:])
}

func (e *PassphraseEncrypter) deriveKey(salt []byte) ([]byte, error) {
	key, err := scrypt.Key(e.passphrase, salt, e.params.N, e.params.R, e.params.P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
