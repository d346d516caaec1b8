package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service signs and verifies tokens against a frozen Registry and adapts
// password hashing.
type Service struct {
	log      *slog.Logger
	registry *Registry
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(log *slog.Logger, registry *Registry, opts ...Option) *Service {
	s := &Service{log: log, registry: registry, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Issued struct {
	Token     string
	ExpiresAt time.Time
}

type issueOptions struct {
	lifetime time.Duration
}

type IssueOption func(*issueOptions)

// WithLifetime overrides the policy's default lifetime for one token.
func WithLifetime(d time.Duration) IssueOption {
	return func(o *issueOptions) { o.lifetime = d }
}

func (s *Service) Issue(claims Claims, opts ...IssueOption) (Issued, error) {
	t := claims.TokenType()
	policy, err := s.registry.Policy(t)
	if err != nil {
		return Issued{}, err
	}
	o := issueOptions{lifetime: policy.Lifetime}
	for _, opt := range opts {
		opt(&o)
	}
	method, err := policy.method()
	if err != nil {
		return Issued{}, err
	}

	payload, err := toMap(claims)
	if err != nil {
		return Issued{}, err
	}
	exp := s.now().Add(o.lifetime)
	payload["type"] = string(t)
	payload["exp"] = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(method, payload).SignedString(policy.Secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign %s: %w", t, err)
	}
	return Issued{Token: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks signature, expiry and the type claim and returns the decoded
// claim map.
func (s *Service) Verify(token string, expected TokenType) (map[string]any, error) {
	policy, err := s.registry.Policy(expected)
	if err != nil {
		return nil, err
	}
	method, err := policy.method()
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return policy.Secret, nil },
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if typ, _ := claims["type"].(string); typ != string(expected) {
		return nil, ErrTypeMismatch
	}
	return claims, nil
}

// VerifyAs verifies against the type bound to C and decodes into it.
func VerifyAs[C Claims](s *Service, token string) (C, error) {
	var out C
	claims, err := s.Verify(token, out.TokenType())
	if err != nil {
		return out, err
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return out, nil
}

func toMap(claims Claims) (jwt.MapClaims, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}
	m := jwt.MapClaims{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
