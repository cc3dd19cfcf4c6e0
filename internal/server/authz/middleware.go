// Package authz is the authorization boundary: it resolves the caller from
// the bearer token and enforces record ownership.
package authz

import (
	"context"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/dmitrijs2005/villagekeeper/internal/server/auth"
	"github.com/dmitrijs2005/villagekeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/villagekeeper/internal/server/identity"
	"github.com/gin-gonic/gin"
)

// Authenticator resolves a raw token to a principal. identity.Provider
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Principal, error)
}

type principalCtxKey struct{}

const principalKey = "principal"

func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(ctx context.Context) (*identity.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*identity.Principal)
	return p, ok && p != nil
}

// Authenticate rejects requests without a valid bearer token. The
// authenticator is not called when the header is missing or malformed.
func Authenticate(a Authenticator, logger logging.Logger) gin.HandlerFunc {
	logger = logger.With("module", "authz")

	return func(c *gin.Context) {
		token, err := auth.ParseBearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if err != nil {
			response.Error(c, logger, err)
			return
		}

		ctx := c.Request.Context()
		principal, err := a.Authenticate(ctx, token)
		if err != nil {
			response.Error(c, logger, err)
			return
		}

		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(WithPrincipal(ctx, principal))
		c.Next()
	}
}

// MustPrincipal returns the principal of an authenticated request. It
// panics when used on a route without the Authenticate middleware.
func MustPrincipal(c *gin.Context) *identity.Principal {
	return c.MustGet(principalKey).(*identity.Principal)
}
