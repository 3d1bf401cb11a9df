package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/user"
)

type TokenVerifier interface {
	Verify(raw string) (*Claims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type AccountLoader interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

const DefaultLookupTimeout = 2 * time.Second

// Gate turns a bearer token into the current account and answers
// authorization questions about it. The account store is authoritative:
// role and active flag come from the store on every call, not the token.
type Gate struct {
	tokens        TokenVerifier
	revocations   RevocationChecker
	accounts      AccountLoader
	lookupTimeout time.Duration
}

func NewGate(tokens TokenVerifier, revocations RevocationChecker, accounts AccountLoader, lookupTimeout time.Duration) *Gate {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Gate{
		tokens:        tokens,
		revocations:   revocations,
		accounts:      accounts,
		lookupTimeout: lookupTimeout,
	}
}

// Authenticate verifies raw, rejects revoked tokens and loads the account
// the token names. It returns the verified claims with the stored identity.
func (g *Gate) Authenticate(ctx context.Context, raw string) (*Claims, user.Identity, error) {
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, user.Identity{}, err
	}

	if g.revocations != nil {
		revoked, err := g.revocations.IsRevoked(ctx, raw)
		if err != nil {
			return nil, user.Identity{}, fmt.Errorf("%w: revocation lookup: %v", ErrServiceUnavailable, err)
		}
		if revoked {
			return nil, user.Identity{}, ErrTokenRevoked
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	u, err := g.accounts.GetByID(lookupCtx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, user.Identity{}, ErrUnauthenticated
		}
		return nil, user.Identity{}, fmt.Errorf("%w: account lookup: %v", ErrServiceUnavailable, err)
	}

	// A renamed account no longer matches tokens issued to the old name.
	if u.Username != claims.Subject {
		return nil, user.Identity{}, ErrInvalidToken
	}

	id := u.Identity()
	if err := RequireActive(id); err != nil {
		return nil, user.Identity{}, err
	}

	return claims, id, nil
}

func (g *Gate) ResolveIdentity(ctx context.Context, raw string) (user.Identity, error) {
	_, id, err := g.Authenticate(ctx, raw)
	return id, err
}

func RequireActive(id user.Identity) error {
	if !id.IsActive {
		return ErrAccountInactive
	}
	return nil
}

func RequireRole(id user.Identity, allowed user.RoleSet) error {
	if !allowed.Contains(id.Role) {
		return ErrForbidden
	}
	return nil
}

// CheckOwnership allows admins and the owner of a resource.
func CheckOwnership(id user.Identity, ownerID int64) error {
	if id.IsAdmin() || (id.ID > 0 && id.ID == ownerID) {
		return nil
	}
	return ErrForbidden
}
