// Package common defines shared constants and sentinel errors used across
// the VillageKeeper server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrHashCorrupted      = errors.New("password hash corrupted")

	// Token errors. All of them are reported to clients as ErrorUnauthorized.
	ErrInvalidTokenFormat = errors.New("token: malformed")
	ErrInvalidSignature   = errors.New("token: invalid signature")
	ErrTokenExpired       = errors.New("token: expired")
	ErrInvalidClaims      = errors.New("token: invalid claims")
	ErrTokenRevoked       = errors.New("token: revoked")

	// Authorization errors.
	ErrForbidden = errors.New("forbidden")

	// Delegated identity authority errors.
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
	ErrUpstreamRejected    = errors.New("identity provider rejected request")
	ErrPartialRegistration = errors.New("identity provider: partial registration")
)

var authErrors = []error{
	ErrorUnauthorized,
	ErrInvalidCredentials,
	ErrInvalidTokenFormat,
	ErrInvalidSignature,
	ErrTokenExpired,
	ErrInvalidClaims,
	ErrTokenRevoked,
}

// IsAuthError reports whether err is one of the authentication failures that
// must collapse into a single "unauthorized" outcome for the client.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
