package crypt_test

import (
	"encoding/base64"
	"testing"

	"github.com/jrsteele09/go-oauth2-server/token/crypt"
	"github.com/stretchr/testify/require"
)

// Cheap scrypt parameters keep the tests fast.
var testParams = crypt.ScryptParams{N: 1 << 10, R: 8, P: 1}

func TestEncrypters_RoundTrip(t *testing.T) {
	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	keyEnc, err := crypt.NewKeyEncrypter(key)
	require.NoError(t, err)
	passEnc, err := crypt.NewPassphraseEncrypter("correct horse battery staple", testParams)
	require.NoError(t, err)

	for name, enc := range map[string]crypt.Encrypter{"key": keyEnc, "passphrase": passEnc} {
		t.Run(name, func(t *testing.T) {
			plaintext := []byte(`{"refresh_token_id":"abc"}`)
			sealed, err := enc.Encrypt(plaintext)
			require.NoError(t, err)
			require.NotContains(t, sealed, "refresh_token_id")

			opened, err := enc.Decrypt(sealed)
			require.NoError(t, err)
			require.Equal(t, plaintext, opened)

			again, err := enc.Encrypt(plaintext)
			require.NoError(t, err)
			require.NotEqual(t, sealed, again, "nonce must differ per call")
		})
	}
}

func TestKeyEncrypter_RejectsTampering(t *testing.T) {
	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	enc, err := crypt.NewKeyEncrypter(key)
	require.NoError(t, err)

	sealed, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = enc.Decrypt(base64.RawURLEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, crypt.ErrDecrypt)

	_, err = enc.Decrypt("not base64 !!")
	require.ErrorIs(t, err, crypt.ErrDecrypt)

	_, err = enc.Decrypt("")
	require.ErrorIs(t, err, crypt.ErrDecrypt)
}

func TestKeyEncrypter_WrongKey(t *testing.T) {
	k1, _ := crypt.GenerateKey()
	k2, _ := crypt.GenerateKey()
	e1, err := crypt.NewKeyEncrypter(k1)
	require.NoError(t, err)
	e2, err := crypt.NewKeyEncrypter(k2)
	require.NoError(t, err)

	sealed, err := e1.Encrypt([]byte("payload"))
	require.NoError(t, err)
	_, err = e2.Decrypt(sealed)
	require.ErrorIs(t, err, crypt.ErrDecrypt)
}

func TestPassphraseEncrypter_WrongPassphrase(t *testing.T) {
	e1, err := crypt.NewPassphraseEncrypter("one", testParams)
	require.NoError(t, err)
	e2, err := crypt.NewPassphraseEncrypter("two", testParams)
	require.NoError(t, err)

	sealed, err := e1.Encrypt([]byte("payload"))
	require.NoError(t, err)
	_, err = e2.Decrypt(sealed)
	require.ErrorIs(t, err, crypt.ErrDecrypt)

	_, err = crypt.NewPassphraseEncrypter("", testParams)
	require.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key, err := crypt.GenerateKey()
	require.NoError(t, err)

	parsed, err := crypt.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Equal(t, key, parsed)

	parsed, err = crypt.ParseKey(base64.RawURLEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Equal(t, key, parsed)

	parsed, err = crypt.ParseKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	require.Len(t, parsed, crypt.KeySize)

	_, err = crypt.ParseKey("short")
	require.Error(t, err)

	_, err = crypt.NewKeyEncrypter([]byte("short"))
	require.Error(t, err)
}
