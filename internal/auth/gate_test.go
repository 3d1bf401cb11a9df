package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	users map[int64]user.User
	err   error
}

func (f *fakeAccounts) GetByID(_ context.Context, id int64) (user.User, error) {
	if f.err != nil {
		return user.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	return f.revoked[token], f.err
}

func accountFor(id user.Identity) user.User {
	return user.User{
		ID:       id.ID,
		Username: id.Username,
		Email:    id.Email,
		FullName: id.FullName,
		Role:     id.Role,
		IsActive: id.IsActive,
	}
}

func TestGate_Authenticate(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(clock)

	raw, _, err := m.Issue(requestor)
	require.NoError(t, err)

	inactive := accountFor(requestor)
	inactive.IsActive = false

	renamed := accountFor(requestor)
	renamed.Username = "someone-else"

	promoted := accountFor(requestor)
	promoted.Role = user.RoleLeader

	tests := []struct {
		name     string
		accounts *fakeAccounts
		revs     *fakeRevocations
		wantErr  error
		wantRole user.Role
	}{
		{"ok", &fakeAccounts{users: map[int64]user.User{3: accountFor(requestor)}}, &fakeRevocations{}, nil, user.RoleRequestor},
		{"role from store", &fakeAccounts{users: map[int64]user.User{3: promoted}}, &fakeRevocations{}, nil, user.RoleLeader},
		{"revoked", &fakeAccounts{users: map[int64]user.User{3: accountFor(requestor)}}, &fakeRevocations{revoked: map[string]bool{raw: true}}, ErrTokenRevoked, 0},
		{"registry down", &fakeAccounts{users: map[int64]user.User{3: accountFor(requestor)}}, &fakeRevocations{err: errors.New("dial tcp")}, ErrServiceUnavailable, 0},
		{"account deleted", &fakeAccounts{users: map[int64]user.User{}}, &fakeRevocations{}, ErrUnauthenticated, 0},
		{"store down", &fakeAccounts{err: errors.New("conn refused")}, &fakeRevocations{}, ErrServiceUnavailable, 0},
		{"inactive", &fakeAccounts{users: map[int64]user.User{3: inactive}}, &fakeRevocations{}, ErrAccountInactive, 0},
		{"renamed", &fakeAccounts{users: map[int64]user.User{3: renamed}}, &fakeRevocations{}, ErrInvalidToken, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(m, tt.revs, tt.accounts, time.Second)

			claims, id, err := g.Authenticate(context.Background(), raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(3), id.ID)
			assert.Equal(t, tt.wantRole, id.Role)
		})
	}
}

func TestGate_InvalidTokenSkipsLookups(t *testing.T) {
	accounts := &fakeAccounts{err: errors.New("must not be called")}
	g := NewGate(NewManager("k", time.Minute), &fakeRevocations{err: errors.New("must not be called")}, accounts, 0)

	_, err := g.ResolveIdentity(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGate_ExpiredToken(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := NewManager("k", time.Minute, WithClock(clock.Now))
	raw, _, err := m.Issue(requestor)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)

	g := NewGate(m, &fakeRevocations{}, &fakeAccounts{users: map[int64]user.User{3: accountFor(requestor)}}, 0)
	_, err = g.ResolveIdentity(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireRole(t *testing.T) {
	admin := user.Identity{ID: 1, Role: user.RoleAdmin, IsActive: true}
	leader := user.Identity{ID: 2, Role: user.RoleLeader, IsActive: true}

	assert.NoError(t, RequireRole(admin, user.AdminOnly))
	assert.ErrorIs(t, RequireRole(leader, user.AdminOnly), ErrForbidden)
	assert.NoError(t, RequireRole(leader, user.AdminOrLeader))
	assert.ErrorIs(t, RequireRole(requestor, user.AdminOrLeader), ErrForbidden)
	assert.NoError(t, RequireRole(requestor, user.RolesOf(user.RoleRequestor)))
	assert.ErrorIs(t, RequireRole(user.Identity{}, user.RolesOf(user.RoleAdmin, user.RoleLeader, user.RoleRequestor)), ErrForbidden)
}

func TestCheckOwnership(t *testing.T) {
	admin := user.Identity{ID: 1, Role: user.RoleAdmin, IsActive: true}

	assert.ErrorIs(t, CheckOwnership(requestor, 7), ErrForbidden)
	assert.NoError(t, CheckOwnership(requestor, 3))
	assert.NoError(t, CheckOwnership(admin, 7))
}

func TestRequireActive(t *testing.T) {
	assert.NoError(t, RequireActive(requestor))
	assert.ErrorIs(t, RequireActive(user.Identity{ID: 3}), ErrAccountInactive)
}
