package user

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var ErrBlankFullName = errors.New("full name cannot be empty")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]*[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidUsername reports whether s uses only letters, digits, hyphens and
// underscores and carries at least one letter or digit.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeFullName trims and title-cases a display name: the first letter of
// every run of letters is upper-cased and the rest lower-cased.
func NormalizeFullName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrBlankFullName
	}

	var b strings.Builder
	b.Grow(len(s))

	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case isLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String(), nil
}

func (r *SignUpRequest) Normalize() error {
	r.Username = NormalizeUsername(r.Username)
	r.Email = NormalizeEmail(r.Email)
	name, err := NormalizeFullName(r.FullName)
	if err != nil {
		return err
	}
	r.FullName = name
	return nil
}

func (r *CreateRequest) Normalize() error {
	r.Username = NormalizeUsername(r.Username)
	r.Email = NormalizeEmail(r.Email)
	name, err := NormalizeFullName(r.FullName)
	if err != nil {
		return err
	}
	r.FullName = name
	return nil
}

func (r *UpdateRequest) Normalize() error {
	if r.Username != nil {
		v := NormalizeUsername(*r.Username)
		r.Username = &v
	}
	if r.Email != nil {
		v := NormalizeEmail(*r.Email)
		r.Email = &v
	}
	if r.FullName != nil {
		v, err := NormalizeFullName(*r.FullName)
		if err != nil {
			return err
		}
		r.FullName = &v
	}
	if r.Role != nil && !r.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Username = NormalizeUsername(r.Username)
}
