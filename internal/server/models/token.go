package models

import "time"

// TokenKind distinguishes the single-use tokens stored in user_tokens.
type TokenKind string

const (
	// TokenKindVerification is the 6-digit code mailed after signup.
	TokenKindVerification TokenKind = "verification"
	// TokenKindPasswordReset is the random hex token embedded in reset links.
	TokenKindPasswordReset TokenKind = "password_reset"
)

// UserToken is a single-use, expiring token bound to a user.
type UserToken struct {
	ID        string
	UserID    string
	Kind      TokenKind
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
