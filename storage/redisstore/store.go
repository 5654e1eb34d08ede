// Package redisstore keeps access tokens, refresh tokens and authorization
// codes in Redis. Records expire with the entity they describe.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	"github.com/jrsteele09/go-oauth2-server/token"
)

const (
	DefaultKeyPrefix = "oauth:"

	keyAccessToken  = "access:"
	keyRevokedToken = "access_revoked:"
	keyRefreshToken = "refresh:"
	keyAuthCode     = "code:"

	// Revocations of unknown access tokens are remembered for this long.
	defaultRevocationTTL = 24 * time.Hour
)

var (
	_ token.AccessTokenRepo  = (*Store)(nil)
	_ token.RefreshTokenRepo = (*Store)(nil)
	_ token.AuthCodeRepo     = (*Store)(nil)
)

type Option func(*Store)

func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = nowFunc
	}
}

// WithoutRefreshTokens makes GetNewRefreshToken return nil.
func WithoutRefreshTokens() Option {
	return func(s *Store) {
		s.noRefresh = true
	}
}

// Store implements the token repositories on a Redis client.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	nowFunc   func() time.Time
	noRefresh bool
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type storedClient struct {
	ID           string             `json:"id"`
	Name         string             `json:"name,omitempty"`
	Type         clients.ClientType `json:"type"`
	RedirectURIs []string           `json:"redirect_uris,omitempty"`
	GrantTypes   []oauth2.GrantType `json:"grant_types,omitempty"`
}

type storedAccessToken struct {
	ID        string       `json:"id"`
	Client    storedClient `json:"client"`
	UserID    string       `json:"user_id,omitempty"`
	Scopes    []string     `json:"scopes"`
	IssuedAt  int64        `json:"issued_at"`
	ExpiresAt int64        `json:"expires_at"`
}

type storedRefreshToken struct {
	ID            string `json:"id"`
	AccessTokenID string `json:"access_token_id"`
	ClientID      string `json:"client_id"`
	UserID        string `json:"user_id,omitempty"`
	ExpiresAt     int64  `json:"expires_at"`
}

type storedAuthCode struct {
	ID                  string       `json:"id"`
	Client              storedClient `json:"client"`
	UserID              string       `json:"user_id"`
	RedirectURI         string       `json:"redirect_uri,omitempty"`
	Scopes              []string     `json:"scopes"`
	ExpiresAt           int64        `json:"expires_at"`
	CodeChallenge       string       `json:"code_challenge,omitempty"`
	CodeChallengeMethod string       `json:"code_challenge_method,omitempty"`
}

func newStoredClient(c *clients.Client) storedClient {
	if c == nil {
		return storedClient{}
	}
	return storedClient{ID: c.ID, Name: c.Name, Type: c.Type, RedirectURIs: c.RedirectURIs, GrantTypes: c.GrantTypes}
}

func (c storedClient) client() *clients.Client {
	return &clients.Client{ID: c.ID, Name: c.Name, Type: c.Type, RedirectURIs: c.RedirectURIs, GrantTypes: c.GrantTypes}
}

// scopeEntities rebuilds scopes from their ids. Descriptions are not stored.
func scopeEntities(ids []string) []*scopes.Scope {
	out := make([]*scopes.Scope, 0, len(ids))
	for _, id := range ids {
		out = append(out, &scopes.Scope{ID: id})
	}
	return out
}

func (s *Store) key(kind, id string) string {
	return s.keyPrefix + kind + id
}

// ttlUntil is the key lifetime for a record expiring at t, at least one second.
func (s *Store) ttlUntil(t time.Time) time.Duration {
	ttl := t.Sub(s.nowFunc())
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// create stores value under key only if the key is free.
func (s *Store) create(ctx context.Context, key string, value any, expiresAt time.Time) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	created, err := s.client.SetNX(ctx, key, data, s.ttlUntil(expiresAt)).Result()
	if err != nil {
		return errors.Wrap(err, "SETNX")
	}
	if !created {
		return token.ErrUniqueIdentifierViolation
	}
	return nil
}

// remove deletes key, reporting token.ErrNotFound when nothing was deleted.
func (s *Store) remove(ctx context.Context, key string) error {
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "DEL")
	}
	if deleted == 0 {
		return token.ErrNotFound
	}
	return nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(err, "EXISTS")
	}
	return n > 0, nil
}

func (s *Store) GetNewToken(_ context.Context, client *clients.Client, tokenScopes []*scopes.Scope, userID string) (*token.AccessToken, error) {
	return token.NewAccessToken(client, tokenScopes, userID), nil
}

func (s *Store) PersistNewAccessToken(ctx context.Context, at *token.AccessToken) error {
	err := s.create(ctx, s.key(keyAccessToken, at.ID), storedAccessToken{
		ID:        at.ID,
		Client:    newStoredClient(at.Client),
		UserID:    at.UserID,
		Scopes:    at.ScopeIDs(),
		IssuedAt:  at.IssuedAt.Unix(),
		ExpiresAt: at.ExpiresAt.Unix(),
	}, at.ExpiresAt)
	if err != nil && !errors.Is(err, token.ErrUniqueIdentifierViolation) {
		return errors.Wrap(err, "[Store.PersistNewAccessToken]")
	}
	return err
}

// RevokeAccessToken marks the token revoked until it would have expired anyway.
func (s *Store) RevokeAccessToken(ctx context.Context, tokenID string) error {
	ttl := defaultRevocationTTL
	data, err := s.client.Get(ctx, s.key(keyAccessToken, tokenID)).Bytes()
	switch {
	case err == nil:
		var stored storedAccessToken
		if err := json.Unmarshal(data, &stored); err != nil {
			return errors.Wrap(err, "[Store.RevokeAccessToken] unmarshal")
		}
		ttl = s.ttlUntil(time.Unix(stored.ExpiresAt, 0))
	case !errors.Is(err, redis.Nil):
		return errors.Wrap(err, "[Store.RevokeAccessToken] GET")
	}

	if err := s.client.Set(ctx, s.key(keyRevokedToken, tokenID), "1", ttl).Err(); err != nil {
		return errors.Wrap(err, "[Store.RevokeAccessToken] SET")
	}
	return nil
}

func (s *Store) IsAccessTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := s.exists(ctx, s.key(keyRevokedToken, tokenID))
	if err != nil {
		return false, errors.Wrap(err, "[Store.IsAccessTokenRevoked]")
	}
	return revoked, nil
}

// AccessToken loads a persisted access token.
func (s *Store) AccessToken(ctx context.Context, tokenID string) (*token.AccessToken, error) {
	data, err := s.client.Get(ctx, s.key(keyAccessToken, tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, token.ErrNotFound
		}
		return nil, errors.Wrap(err, "[Store.AccessToken] GET")
	}
	var stored storedAccessToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "[Store.AccessToken] unmarshal")
	}
	return &token.AccessToken{
		ID:        stored.ID,
		Client:    stored.Client.client(),
		UserID:    stored.UserID,
		Scopes:    scopeEntities(stored.Scopes),
		IssuedAt:  time.Unix(stored.IssuedAt, 0),
		ExpiresAt: time.Unix(stored.ExpiresAt, 0),
	}, nil
}

func (s *Store) GetNewRefreshToken(context.Context) (*token.RefreshToken, error) {
	if s.noRefresh {
		return nil, nil
	}
	return &token.RefreshToken{}, nil
}

func (s *Store) PersistNewRefreshToken(ctx context.Context, rt *token.RefreshToken) error {
	stored := storedRefreshToken{ID: rt.ID, ExpiresAt: rt.ExpiresAt.Unix()}
	if rt.AccessToken != nil {
		stored.AccessTokenID = rt.AccessToken.ID
		stored.ClientID = rt.AccessToken.ClientID()
		stored.UserID = rt.AccessToken.UserID
	}
	err := s.create(ctx, s.key(keyRefreshToken, rt.ID), stored, rt.ExpiresAt)
	if err != nil && !errors.Is(err, token.ErrUniqueIdentifierViolation) {
		return errors.Wrap(err, "[Store.PersistNewRefreshToken]")
	}
	return err
}

// RevokeRefreshToken deletes the record. Of two concurrent revocations only
// one observes a deleted key; the other gets token.ErrNotFound.
func (s *Store) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	err := s.remove(ctx, s.key(keyRefreshToken, tokenID))
	if err != nil && !errors.Is(err, token.ErrNotFound) {
		return errors.Wrap(err, "[Store.RevokeRefreshToken]")
	}
	return err
}

func (s *Store) IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	live, err := s.exists(ctx, s.key(keyRefreshToken, tokenID))
	if err != nil {
		return false, errors.Wrap(err, "[Store.IsRefreshTokenRevoked]")
	}
	return !live, nil
}

func (s *Store) GetNewAuthCode(context.Context) (*token.AuthCode, error) {
	return &token.AuthCode{}, nil
}

func (s *Store) PersistNewAuthCode(ctx context.Context, code *token.AuthCode) error {
	err := s.create(ctx, s.key(keyAuthCode, code.ID), storedAuthCode{
		ID:                  code.ID,
		Client:              newStoredClient(code.Client),
		UserID:              code.UserID,
		RedirectURI:         code.RedirectURI,
		Scopes:              scopes.IDs(code.Scopes),
		ExpiresAt:           code.ExpiresAt.Unix(),
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: string(code.CodeChallengeMethod),
	}, code.ExpiresAt)
	if err != nil && !errors.Is(err, token.ErrUniqueIdentifierViolation) {
		return errors.Wrap(err, "[Store.PersistNewAuthCode]")
	}
	return err
}

func (s *Store) GetAuthCodeByIdentifier(ctx context.Context, codeID string) (*token.AuthCode, error) {
	data, err := s.client.Get(ctx, s.key(keyAuthCode, codeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, token.ErrNotFound
		}
		return nil, errors.Wrap(err, "[Store.GetAuthCodeByIdentifier] GET")
	}
	var stored storedAuthCode
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "[Store.GetAuthCodeByIdentifier] unmarshal")
	}
	return &token.AuthCode{
		ID:                  stored.ID,
		Client:              stored.Client.client(),
		UserID:              stored.UserID,
		RedirectURI:         stored.RedirectURI,
		Scopes:              scopeEntities(stored.Scopes),
		ExpiresAt:           time.Unix(stored.ExpiresAt, 0),
		CodeChallenge:       stored.CodeChallenge,
		CodeChallengeMethod: oauth2.CodeMethodType(stored.CodeChallengeMethod),
	}, nil
}

func (s *Store) RevokeAuthCode(ctx context.Context, codeID string) error {
	err := s.remove(ctx, s.key(keyAuthCode, codeID))
	if err != nil && !errors.Is(err, token.ErrNotFound) {
		return errors.Wrap(err, "[Store.RevokeAuthCode]")
	}
	return err
}
