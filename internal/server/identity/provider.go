// Package identity defines the credential verifier capability shared by the
// two authentication variants: locally signed tokens and a delegated
// OpenID Connect authority. Exactly one Provider is active per process.
package identity

import (
	"context"
	"time"
)

// RegisterRequest carries registration input. Email is optional.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// LoginRequest carries login input. When Email is set it must match the
// account's email as well.
type LoginRequest struct {
	Username string
	Email    string
	Password string
}

// Session is returned by Register and Login.
type Session struct {
	SubjectID string
	Username  string
	Token     string
	ExpiresAt time.Time
}

// Principal is an authenticated caller resolved from a token.
type Principal struct {
	SubjectID string
	TokenID   string
	ExpiresAt time.Time
}

// Account is the directory view of a user.
type Account struct {
	ID       string
	Username string
	Email    string
}

// Provider registers, logs in and authenticates subjects.
type Provider interface {
	Register(ctx context.Context, req RegisterRequest) (*Session, error)
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Authenticate(ctx context.Context, token string) (*Principal, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	DeleteAccount(ctx context.Context, subjectID string) error
}

// PasswordHasher is satisfied by auth.Argon2Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}
