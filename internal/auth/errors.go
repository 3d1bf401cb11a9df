package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is the root of every 401 outcome.
	ErrUnauthenticated = errors.New("could not validate credentials")

	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrTokenRevoked       = fmt.Errorf("%w: token has been revoked", ErrUnauthenticated)
	ErrAccountInactive    = fmt.Errorf("%w: inactive user", ErrUnauthenticated)
	ErrInvalidCredentials = fmt.Errorf("%w: incorrect username or password", ErrUnauthenticated)

	ErrForbidden          = errors.New("not enough permissions")
	ErrServiceUnavailable = errors.New("authorization backend unavailable")
)
