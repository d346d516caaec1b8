package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dmehra2102/checkout-service/internal/account/domain"
	"github.com/dmehra2102/checkout-service/pkg/security"
	"github.com/dmehra2102/checkout-service/pkg/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInactive           = errors.New("account inactive")
	ErrInvalidToken       = errors.New("invalid token")
)

const emailField = "email"

type Session struct {
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"exp"`
	RefreshToken string    `json:"refresh_token"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
}

// Service runs the credential flows. Tokens are stateless: nothing about an
// issued token is stored.
type Service struct {
	log     *slog.Logger
	users   UserStore
	sec     *security.Service
	baseURI string
}

func NewService(log *slog.Logger, users UserStore, sec *security.Service, baseURI string) *Service {
	return &Service{log: log, users: users, sec: sec, baseURI: strings.TrimRight(baseURI, "/")}
}

// Register stores a new customer and issues an email verification token.
// Mail delivery is out of scope; the link is logged.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (domain.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.FindOne(ctx, emailField, email); err == nil {
		return domain.Profile{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Profile{}, err
	}

	hash, err := s.sec.HashPassword(req.Password)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, domain.User{
		Profile: domain.Profile{
			Email:    email,
			FullName: req.FullName,
			Role:     domain.RoleCustomer,
			IsActive: true,
		},
		Password: hash,
	})
	if err != nil {
		return domain.Profile{}, err
	}

	issued, err := s.sec.Issue(security.EmailVerificationClaims{UserID: u.ID, Role: u.Role, Email: u.Email})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("issue verification token: %w", err)
	}
	s.log.Info("user registered", "user_id", u.ID)
	s.log.Debug("email verification link", "user_id", u.ID, "link", s.link("/auth/email-verification", issued.Token))
	return u.Profile, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.FindOne(ctx, emailField, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !s.sec.VerifyPassword(u.Password, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return Session{}, ErrInactive
	}

	access, err := s.sec.Issue(security.AccessClaims{UserID: u.ID, Role: u.Role})
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.sec.Issue(security.RefreshClaims{UserID: u.ID, Role: u.Role})
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	s.log.Info("user logged in", "user_id", u.ID)
	return Session{AccessToken: access.Token, ExpiresAt: access.ExpiresAt, RefreshToken: refresh.Token}, nil
}

// Refresh exchanges a refresh token for a new access token. The role is read
// from the stored user, not from the refresh token.
func (s *Service) Refresh(ctx context.Context, token string) (security.Issued, error) {
	claims, err := security.VerifyAs[security.RefreshClaims](s.sec, token)
	if err != nil {
		return security.Issued{}, errors.Join(ErrInvalidToken, err)
	}
	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return security.Issued{}, err
	}
	return s.sec.Issue(security.AccessClaims{UserID: u.ID, Role: u.Role})
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (domain.Profile, error) {
	claims, err := security.VerifyAs[security.EmailVerificationClaims](s.sec, token)
	if err != nil {
		return domain.Profile{}, errors.Join(ErrInvalidToken, err)
	}
	u, err := s.userFor(ctx, claims.UserID, claims.Email)
	if err != nil {
		return domain.Profile{}, err
	}
	verified := true
	u, err = s.users.Update(ctx, u.ID, domain.UserPatch{EmailVerified: &verified})
	if err != nil {
		return domain.Profile{}, err
	}
	s.log.Info("email verified", "user_id", u.ID)
	return u.Profile, nil
}

// RequestPasswordReset issues a reset token for a verified, active account
// and logs the reset link.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.FindOne(ctx, emailField, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if !u.EmailVerified {
		return ErrEmailNotVerified
	}
	if !u.IsActive {
		return ErrInactive
	}
	issued, err := s.sec.Issue(security.PasswordResetClaims{UserID: u.ID, Role: u.Role, Email: u.Email})
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	s.log.Debug("password reset link", "user_id", u.ID, "link", s.link("/auth/password-reset", issued.Token))
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) (domain.Profile, error) {
	claims, err := security.VerifyAs[security.PasswordResetClaims](s.sec, token)
	if err != nil {
		return domain.Profile{}, errors.Join(ErrInvalidToken, err)
	}
	u, err := s.userFor(ctx, claims.UserID, claims.Email)
	if err != nil {
		return domain.Profile{}, err
	}
	hash, err := s.sec.HashPassword(password)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("hash password: %w", err)
	}
	u, err = s.users.Update(ctx, u.ID, domain.UserPatch{Password: &hash})
	if err != nil {
		return domain.Profile{}, err
	}
	s.log.Info("password reset", "user_id", u.ID)
	return u.Profile, nil
}

// Authenticate checks a bearer access token.
func (s *Service) Authenticate(token string) (security.AccessClaims, error) {
	claims, err := security.VerifyAs[security.AccessClaims](s.sec, token)
	if err != nil {
		return security.AccessClaims{}, errors.Join(ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return security.AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) Profile(ctx context.Context, id string) (domain.Profile, error) {
	u, err := s.activeUser(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	return u.Profile, nil
}

func (s *Service) activeUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, ErrInactive
	}
	return u, nil
}

// userFor loads the user a mailed token was issued to. A token whose email no
// longer matches the account is rejected.
func (s *Service) userFor(ctx context.Context, id, email string) (domain.User, error) {
	if id == "" || email == "" {
		return domain.User{}, ErrInvalidToken
	}
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	if !strings.EqualFold(u.Email, email) {
		return domain.User{}, ErrInvalidToken
	}
	return u, nil
}

func (s *Service) link(path, token string) string {
	return s.baseURI + path + "?token=" + url.QueryEscape(token)
}
