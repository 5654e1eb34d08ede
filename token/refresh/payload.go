package refresh

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/token/crypt"
)

// Payload is the plaintext sealed inside the opaque refresh token handed to clients.
type Payload struct {
	ClientID       string   `json:"client_id"`
	RefreshTokenID string   `json:"refresh_token_id"`
	AccessTokenID  string   `json:"access_token_id"`
	Scopes         []string `json:"scopes"`
	UserID         string   `json:"user_id"`
	ExpireTime     int64    `json:"expire_time"` // Unix seconds
}

// NewPayload captures a persisted refresh token and the access token it was issued with.
func NewPayload(rt *token.RefreshToken) Payload {
	p := Payload{
		RefreshTokenID: rt.ID,
		ExpireTime:     rt.ExpiresAt.Unix(),
		Scopes:         []string{},
	}
	if at := rt.AccessToken; at != nil {
		p.ClientID = at.ClientID()
		p.AccessTokenID = at.ID
		p.UserID = at.UserID
		p.Scopes = at.ScopeIDs()
	}
	return p
}

// ExpiresAt returns the expiry as a time.
func (p Payload) ExpiresAt() time.Time {
	return time.Unix(p.ExpireTime, 0)
}

// Expired reports whether the payload is past its expiry at now.
func (p Payload) Expired(now time.Time) bool {
	return now.Unix() > p.ExpireTime
}

// Seal serialises and encrypts the payload.
func Seal(p Payload, enc crypt.Encrypter) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "[refresh.Seal] marshal payload")
	}
	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		return "", errors.Wrap(err, "[refresh.Seal] encrypt payload")
	}
	return sealed, nil
}

// Open decrypts and parses a sealed payload.
func Open(sealed string, enc crypt.Encrypter) (Payload, error) {
	var p Payload
	plaintext, err := enc.Decrypt(sealed)
	if err != nil {
		return p, errors.Wrap(err, "[refresh.Open] decrypt payload")
	}
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return p, errors.Wrap(err, "[refresh.Open] unmarshal payload")
	}
	if p.RefreshTokenID == "" || p.ClientID == "" {
		return p, errors.New("[refresh.Open] payload is missing identifiers")
	}
	return p, nil
}
