package security

// Claims is a claim set bound to exactly one token type.
type Claims interface {
	TokenType() TokenType
}

type AccessClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

func (AccessClaims) TokenType() TokenType { return AccessToken }

type RefreshClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

func (RefreshClaims) TokenType() TokenType { return RefreshToken }

type EmailVerificationClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (EmailVerificationClaims) TokenType() TokenType { return EmailVerificationToken }

type PasswordResetClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (PasswordResetClaims) TokenType() TokenType { return PasswordResetToken }
