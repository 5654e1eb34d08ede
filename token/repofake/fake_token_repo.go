package tokenfakerepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
)

var (
	_ token.AccessTokenRepo  = (*FakeTokenRepo)(nil)
	_ token.RefreshTokenRepo = (*FakeTokenRepo)(nil)
	_ token.AuthCodeRepo     = (*FakeTokenRepo)(nil)
)

// unknownTokenRevocationTTL bounds how long a revoked id that was never
// persisted here is remembered.
const unknownTokenRevocationTTL = 24 * time.Hour

// FakeTokenRepo keeps access tokens, refresh tokens and auth codes in memory.
type FakeTokenRepo struct {
	accessTokens  map[string]*token.AccessToken
	refreshTokens map[string]*token.RefreshToken
	authCodes     map[string]*token.AuthCode
	revoked       token.RevokedTokenCache
	nowFunc       func() time.Time
	noRefresh     bool
	lock          sync.RWMutex
}

type Option func(*FakeTokenRepo)

// WithoutRefreshTokens makes GetNewRefreshToken return nil.
func WithoutRefreshTokens() Option {
	return func(r *FakeTokenRepo) {
		r.noRefresh = true
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(r *FakeTokenRepo) {
		r.nowFunc = nowFunc
	}
}

func NewFakeTokenRepo(opts ...Option) *FakeTokenRepo {
	r := &FakeTokenRepo{
		accessTokens:  make(map[string]*token.AccessToken),
		refreshTokens: make(map[string]*token.RefreshToken),
		authCodes:     make(map[string]*token.AuthCode),
		nowFunc:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.revoked = token.NewInMemoryRevokedTokenCache(r.nowFunc)
	return r
}

func (r *FakeTokenRepo) GetNewToken(_ context.Context, client *clients.Client, tokenScopes []*scopes.Scope, userID string) (*token.AccessToken, error) {
	return token.NewAccessToken(client, tokenScopes, userID), nil
}

func (r *FakeTokenRepo) PersistNewAccessToken(_ context.Context, accessToken *token.AccessToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.accessTokens[accessToken.ID]; ok {
		return token.ErrUniqueIdentifierViolation
	}
	r.accessTokens[accessToken.ID] = accessToken
	return nil
}

func (r *FakeTokenRepo) RevokeAccessToken(_ context.Context, tokenID string) error {
	r.lock.RLock()
	at, ok := r.accessTokens[tokenID]
	r.lock.RUnlock()

	exp := r.nowFunc().Add(unknownTokenRevocationTTL)
	if ok {
		exp = at.ExpiresAt
	}
	r.revoked.Add(tokenID, exp)
	return nil
}

func (r *FakeTokenRepo) IsAccessTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	return r.revoked.IsRevoked(tokenID), nil
}

// AccessToken returns a persisted access token, for assertions in tests.
func (r *FakeTokenRepo) AccessToken(tokenID string) (*token.AccessToken, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	at, ok := r.accessTokens[tokenID]
	return at, ok
}

func (r *FakeTokenRepo) GetNewRefreshToken(context.Context) (*token.RefreshToken, error) {
	if r.noRefresh {
		return nil, nil
	}
	return &token.RefreshToken{}, nil
}

func (r *FakeTokenRepo) PersistNewRefreshToken(_ context.Context, refreshToken *token.RefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.refreshTokens[refreshToken.ID]; ok {
		return token.ErrUniqueIdentifierViolation
	}
	r.refreshTokens[refreshToken.ID] = refreshToken
	return nil
}

func (r *FakeTokenRepo) RevokeRefreshToken(_ context.Context, tokenID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.refreshTokens[tokenID]; !ok {
		return token.ErrNotFound
	}
	delete(r.refreshTokens, tokenID)
	return nil
}

func (r *FakeTokenRepo) IsRefreshTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.refreshTokens[tokenID]
	return !ok, nil
}

func (r *FakeTokenRepo) GetNewAuthCode(context.Context) (*token.AuthCode, error) {
	return &token.AuthCode{}, nil
}

func (r *FakeTokenRepo) PersistNewAuthCode(_ context.Context, authCode *token.AuthCode) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.authCodes[authCode.ID]; ok {
		return token.ErrUniqueIdentifierViolation
	}
	r.authCodes[authCode.ID] = authCode
	return nil
}

func (r *FakeTokenRepo) GetAuthCodeByIdentifier(_ context.Context, codeID string) (*token.AuthCode, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	code, ok := r.authCodes[codeID]
	if !ok {
		return nil, token.ErrNotFound
	}
	return code, nil
}

func (r *FakeTokenRepo) RevokeAuthCode(_ context.Context, codeID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.authCodes[codeID]; !ok {
		return token.ErrNotFound
	}
	delete(r.authCodes, codeID)
	return nil
}

// Cleanup drops expired revocation entries and expired auth codes.
func (r *FakeTokenRepo) Cleanup() {
	r.revoked.Cleanup()

	now := r.nowFunc()
	r.lock.Lock()
	defer r.lock.Unlock()
	for id, code := range r.authCodes {
		if now.After(code.ExpiresAt) {
			delete(r.authCodes, id)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (r *FakeTokenRepo) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup()
		}
	}
}
