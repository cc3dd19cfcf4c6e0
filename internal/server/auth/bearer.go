package auth

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
)

// ParseBearerToken extracts the token from an Authorization header value of
// the form "Bearer <token>". The scheme is matched case-insensitively.
func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", common.ErrorUnauthorized)
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", fmt.Errorf("%w: expected bearer scheme", common.ErrInvalidTokenFormat)
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", fmt.Errorf("%w: empty bearer token", common.ErrInvalidTokenFormat)
	}

	return token, nil
}
