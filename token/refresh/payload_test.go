package refresh_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/crypt"
	"github.com/jrsteele09/go-oauth2-server/token/refresh"
)

func newEncrypter(t *testing.T) crypt.Encrypter {
	t.Helper()
	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	enc, err := crypt.NewKeyEncrypter(key)
	require.NoError(t, err)
	return enc
}

func TestSealOpen_RoundTrip(t *testing.T) {
	enc := newEncrypter(t)
	expires := time.Now().Add(30 * 24 * time.Hour)
	rt := &token.RefreshToken{
		ID: "rt-1",
		AccessToken: &token.AccessToken{
			ID:     "at-1",
			Client: &clients.Client{ID: "client-1"},
			UserID: "user-1",
			Scopes: []*scopes.Scope{{ID: "read"}, {ID: "write"}},
		},
		ExpiresAt: expires,
	}

	payload := refresh.NewPayload(rt)
	sealed, err := refresh.Seal(payload, enc)
	require.NoError(t, err)
	require.NotContains(t, sealed, "client-1")

	opened, err := refresh.Open(sealed, enc)
	require.NoError(t, err)
	require.Equal(t, payload, opened)
	require.Equal(t, "rt-1", opened.RefreshTokenID)
	require.Equal(t, "at-1", opened.AccessTokenID)
	require.Equal(t, []string{"read", "write"}, opened.Scopes)
	require.Equal(t, expires.Unix(), opened.ExpiresAt().Unix())
	require.False(t, opened.Expired(time.Now()))
	require.True(t, opened.Expired(expires.Add(time.Second)))
}

func TestOpen_Rejects(t *testing.T) {
	enc := newEncrypter(t)

	t.Run("garbage", func(t *testing.T) {
		_, err := refresh.Open("not-a-token", enc)
		require.Error(t, err)
	})

	t.Run("other key", func(t *testing.T) {
		sealed, err := refresh.Seal(refresh.Payload{ClientID: "c", RefreshTokenID: "r"}, newEncrypter(t))
		require.NoError(t, err)
		_, err = refresh.Open(sealed, enc)
		require.ErrorIs(t, err, crypt.ErrDecrypt)
	})

	t.Run("missing identifiers", func(t *testing.T) {
		sealed, err := refresh.Seal(refresh.Payload{}, enc)
		require.NoError(t, err)
		_, err = refresh.Open(sealed, enc)
		require.Error(t, err)
	})
}
