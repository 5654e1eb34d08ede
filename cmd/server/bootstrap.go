package main

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth2-server/clients"
	fakeclientrepo "github.com/jrsteele09/go-oauth2-server/clients/fakerepo"
	"github.com/jrsteele09/go-oauth2-server/internal/config"
	"github.com/jrsteele09/go-oauth2-server/scopes"
	scoperepofake "github.com/jrsteele09/go-oauth2-server/scopes/repofake"
	"github.com/jrsteele09/go-oauth2-server/token"
	"github.com/jrsteele09/go-oauth2-server/users"
	fakeuserrepo "github.com/jrsteele09/go-oauth2-server/users/repofake"
)

const (
	ServiceClientID     = "service-client"
	PublicClientID      = "public-client"
	PublicClientName    = "OAuth Public Client"
	DefaultOwnerName    = "admin"
	generatedSecretSize = 24
)

var defaultScopes = []*scopes.Scope{
	{ID: "read", Description: "Read your data"},
	{ID: "write", Description: "Modify your data"},
}

// bootstrap seeds the in-memory repositories with a confidential service
// client, a public PKCE client and one resource owner. Generated credentials
// are logged once.
func bootstrap(c config.Config, clientRepo *fakeclientrepo.FakeClientRepo, scopeRepo *scoperepofake.FakeScopeRepo, userRepo *fakeuserrepo.FakeUserRepo) error {
	for _, scope := range defaultScopes {
		scopeRepo.Upsert(scope)
	}

	secrets := &token.RandomIdentifierGenerator{Length: generatedSecretSize}

	clientSecret, err := secrets.GenerateIdentifier()
	if err != nil {
		return errors.Wrap(err, "[bootstrap] client secret")
	}
	secretHash, err := clients.HashSecret(clientSecret)
	if err != nil {
		return errors.Wrap(err, "[bootstrap] hash client secret")
	}
	if err := clientRepo.Upsert(&clients.Client{
		ID:         ServiceClientID,
		Name:       "Service Client",
		Type:       clients.ClientTypeConfidential,
		SecretHash: secretHash,
	}); err != nil {
		return errors.Wrap(err, "[bootstrap] service client")
	}

	redirectURI := c.GetBaseURL() + "/callback"
	if err := clientRepo.Upsert(&clients.Client{
		ID:           PublicClientID,
		Name:         PublicClientName,
		Type:         clients.ClientTypePublic,
		RedirectURIs: []string{redirectURI},
	}); err != nil {
		return errors.Wrap(err, "[bootstrap] public client")
	}

	password, err := secrets.GenerateIdentifier()
	if err != nil {
		return errors.Wrap(err, "[bootstrap] owner password")
	}
	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[bootstrap] hash owner password")
	}
	if err := userRepo.Upsert(&users.User{Username: DefaultOwnerName, PasswordHash: passwordHash}); err != nil {
		return errors.Wrap(err, "[bootstrap] owner")
	}

	log.Info().
		Str("client_id", ServiceClientID).
		Str("client_secret", clientSecret).
		Str("public_client_id", PublicClientID).
		Str("public_redirect_uri", redirectURI).
		Str("username", DefaultOwnerName).
		Str("password", password).
		Msg("bootstrap complete, save these credentials, they will not be displayed again")
	return nil
}
