package config

import "time"

const (
	keyAccessTokenTTL  = "access_token_ttl"
	keyRefreshTokenTTL = "refresh_token_ttl"
	keyAuthCodeTTL     = "auth_code_ttl"
	keyScopeDelimiter  = "scope_delimiter"
	keyDefaultScope    = "default_scope"
)

type OAuthConfig interface {
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetAuthCodeTTL() time.Duration
	GetScopeDelimiter() string
	GetDefaultScope() string
}

func (c mainConfig) GetAccessTokenTTL() time.Duration {
	return c.v.GetDuration(keyAccessTokenTTL)
}

func (c mainConfig) GetRefreshTokenTTL() time.Duration {
	return c.v.GetDuration(keyRefreshTokenTTL)
}

func (c mainConfig) GetAuthCodeTTL() time.Duration {
	return c.v.GetDuration(keyAuthCodeTTL)
}

func (c mainConfig) GetScopeDelimiter() string {
	if d := c.v.GetString(keyScopeDelimiter); d != "" {
		return d
	}
	return " "
}

func (c mainConfig) GetDefaultScope() string {
	return c.v.GetString(keyDefaultScope)
}
