package resource

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-oauth2-server/token/jwt"
)

// Verifier checks the signature and time claims of a raw access token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*jwt.AccessTokenClaims, error)
}

type verifierOptions struct {
	nowFunc    func() time.Time
	httpClient *http.Client
}

type VerifierOption func(*verifierOptions)

// WithVerifierNowFunc anchors exp/nbf checks (primarily for testing)
func WithVerifierNowFunc(nowFunc func() time.Time) VerifierOption {
	return func(o *verifierOptions) {
		o.nowFunc = nowFunc
	}
}

// WithHTTPClient sets the client used to fetch a remote key set.
func WithHTTPClient(client *http.Client) VerifierOption {
	return func(o *verifierOptions) {
		o.httpClient = client
	}
}

func newVerifierOptions(opts []VerifierOption) verifierOptions {
	o := verifierOptions{nowFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PublicKeyVerifier verifies tokens against a single local public key.
type PublicKeyVerifier struct {
	key     crypto.PublicKey
	nowFunc func() time.Time
}

var _ Verifier = (*PublicKeyVerifier)(nil)

func NewPublicKeyVerifier(key crypto.PublicKey, opts ...VerifierOption) *PublicKeyVerifier {
	o := newVerifierOptions(opts)
	return &PublicKeyVerifier{key: key, nowFunc: o.nowFunc}
}

func (v *PublicKeyVerifier) Verify(_ context.Context, raw string) (*jwt.AccessTokenClaims, error) {
	return jwt.ParseAccessToken(raw, v.keyFunc, v.nowFunc)
}

// keyFunc refuses algorithms that do not match the key type.
func (v *PublicKeyVerifier) keyFunc(t *jwtlib.Token) (any, error) {
	var ok bool
	switch v.key.(type) {
	case *rsa.PublicKey:
		_, ok = t.Method.(*jwtlib.SigningMethodRSA)
	case *ecdsa.PublicKey:
		_, ok = t.Method.(*jwtlib.SigningMethodECDSA)
	default:
		return nil, fmt.Errorf("unsupported public key type %T", v.key)
	}
	if !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return v.key, nil
}

// RemoteKeySetVerifier verifies tokens against a JWKS document fetched over
// HTTP. Keys are cached and refetched when an unknown kid is seen.
type RemoteKeySetVerifier struct {
	keySet  *oidc.RemoteKeySet
	nowFunc func() time.Time
}

var _ Verifier = (*RemoteKeySetVerifier)(nil)

// NewRemoteKeySetVerifier creates a verifier for jwksURL. ctx is used for key
// fetches for the lifetime of the verifier.
func NewRemoteKeySetVerifier(ctx context.Context, jwksURL string, opts ...VerifierOption) *RemoteKeySetVerifier {
	o := newVerifierOptions(opts)
	if o.httpClient != nil {
		ctx = oidc.ClientContext(ctx, o.httpClient)
	}
	return &RemoteKeySetVerifier{
		keySet:  oidc.NewRemoteKeySet(ctx, jwksURL),
		nowFunc: o.nowFunc,
	}
}

func (v *RemoteKeySetVerifier) Verify(ctx context.Context, raw string) (*jwt.AccessTokenClaims, error) {
	payload, err := v.keySet.VerifySignature(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify signature: %w", err)
	}
	claims := &jwt.AccessTokenClaims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("decode access token claims: %w", err)
	}
	if err := jwt.ValidateAccessTokenClaims(claims, v.nowFunc); err != nil {
		return nil, err
	}
	return claims, nil
}
