package auth

import "errors"

var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrDuplicateGrant    = errors.New("grant type enabled more than once")
	ErrNilGrant          = errors.New("nil grant handler")
)
