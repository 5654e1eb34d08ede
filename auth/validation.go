package auth

import (
	"github.com/pkg/errors"
)

// validate checks that every collaborator the grants rely on is present.
func (c Config) validate() error {
	switch {
	case c.Clients == nil:
		return errors.Wrap(ErrMissingDependency, "clients repo is required")
	case c.AccessTokens == nil:
		return errors.Wrap(ErrMissingDependency, "access token repo is required")
	case c.Scopes == nil:
		return errors.Wrap(ErrMissingDependency, "scopes repo is required")
	case c.Signer == nil:
		return errors.Wrap(ErrMissingDependency, "signer is required")
	case c.Encrypter == nil:
		return errors.Wrap(ErrMissingDependency, "encrypter is required")
	}
	return nil
}
