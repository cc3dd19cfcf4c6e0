package identity

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/server/revocation"
)

// Revoking adds server-side logout to a Provider by consulting a denylist
// after the wrapped provider has verified a token.
type Revoking struct {
	Provider
	denylist revocation.Denylist
}

func NewRevoking(p Provider, d revocation.Denylist) *Revoking {
	return &Revoking{Provider: p, denylist: d}
}

func (r *Revoking) Authenticate(ctx context.Context, token string) (*Principal, error) {
	principal, err := r.Provider.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := r.denylist.IsRevoked(ctx, principal.TokenID)
	if err != nil {
		return nil, fmt.Errorf("denylist lookup: %w", err)
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}
	return principal, nil
}

// Logout revokes the principal's token until it expires. Tokens without an
// ID cannot be revoked.
func (r *Revoking) Logout(ctx context.Context, principal *Principal) error {
	if principal.TokenID == "" {
		return fmt.Errorf("%w: token has no id", common.ErrInvalidClaims)
	}
	return r.denylist.Revoke(ctx, principal.TokenID, principal.ExpiresAt)
}
