// Package security issues and verifies signed, typed, expiring tokens and
// hashes passwords.
package security

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	AccessToken            TokenType = "access_token"
	RefreshToken           TokenType = "refresh_token"
	EmailVerificationToken TokenType = "email_verification_token"
	PasswordResetToken     TokenType = "password_reset_token"
)

func (t TokenType) Valid() bool {
	switch t {
	case AccessToken, RefreshToken, EmailVerificationToken, PasswordResetToken:
		return true
	}
	return false
}

var (
	ErrUnregisteredType = errors.New("token type is not registered")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
	ErrTypeMismatch     = errors.New("token type does not match")
)

// Policy binds a token type to its key, signing algorithm and default lifetime.
type Policy struct {
	Secret    []byte
	Algorithm string
	Lifetime  time.Duration
}

func (p Policy) method() (jwt.SigningMethod, error) {
	switch p.Algorithm {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	}
	return nil, fmt.Errorf("unsupported algorithm %q", p.Algorithm)
}

// RegistryBuilder collects registrations at start-up. Build freezes them.
type RegistryBuilder struct {
	policies map[TokenType]Policy
	err      error
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{policies: map[TokenType]Policy{}}
}

func (b *RegistryBuilder) Register(t TokenType, p Policy) *RegistryBuilder {
	if b.err != nil {
		return b
	}
	switch {
	case !t.Valid():
		b.err = fmt.Errorf("unknown token type %q", t)
	case len(p.Secret) == 0:
		b.err = fmt.Errorf("%s: empty secret", t)
	case p.Lifetime <= 0:
		b.err = fmt.Errorf("%s: lifetime must be positive", t)
	default:
		if _, dup := b.policies[t]; dup {
			b.err = fmt.Errorf("%s registered twice", t)
			break
		}
		if _, err := p.method(); err != nil {
			b.err = fmt.Errorf("%s: %w", t, err)
			break
		}
		p.Secret = append([]byte(nil), p.Secret...)
		if p.Algorithm == "" {
			p.Algorithm = "HS256"
		}
		b.policies[t] = p
	}
	return b
}

func (b *RegistryBuilder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	policies := make(map[TokenType]Policy, len(b.policies))
	for t, p := range b.policies {
		policies[t] = p
	}
	return &Registry{policies: policies}, nil
}

// Registry is the immutable type→policy mapping.
type Registry struct {
	policies map[TokenType]Policy
}

func (r *Registry) Policy(t TokenType) (Policy, error) {
	p, ok := r.policies[t]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnregisteredType, t)
	}
	return p, nil
}

func (r *Registry) Types() []TokenType {
	out := make([]TokenType, 0, len(r.policies))
	for t := range r.policies {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
