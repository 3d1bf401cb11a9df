package user

import (
	"encoding/json"
	"errors"
	"strings"
)

// Role is the closed set of account roles. The zero value is not a valid role.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleLeader
	RoleRequestor
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole accepts either the API form ("admin") or the token form ("ADMIN").
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "leader":
		return RoleLeader, nil
	case "requestor":
		return RoleRequestor, nil
	default:
		return 0, ErrInvalidRole
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLeader, RoleRequestor:
		return true
	default:
		return false
	}
}

// String returns the lower-case form used in JSON bodies and the database.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleLeader:
		return "leader"
	case RoleRequestor:
		return "requestor"
	default:
		return "unknown"
	}
}

// Name returns the upper-case form carried in token claims.
func (r Role) Name() string {
	return strings.ToUpper(r.String())
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidRole
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleSet is a bitmask of roles.
type RoleSet uint8

const (
	AdminOnly     RoleSet = 1 << RoleAdmin
	AdminOrLeader RoleSet = 1<<RoleAdmin | 1<<RoleLeader
)

func RolesOf(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if r.Valid() {
			s |= 1 << r
		}
	}
	return s
}

func (s RoleSet) Contains(r Role) bool {
	return r.Valid() && s&(1<<r) != 0
}

func (s RoleSet) String() string {
	names := make([]string, 0, 3)
	for _, r := range []Role{RoleAdmin, RoleLeader, RoleRequestor} {
		if s.Contains(r) {
			names = append(names, r.String())
		}
	}
	return strings.Join(names, ",")
}
