// Package revocation provides denylists for access tokens that were revoked
// before their natural expiry. Entries only need to live until the token
// would have expired anyway.
package revocation

import (
	"context"
	"time"
)

// Denylist records revoked token IDs ("jti").
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
