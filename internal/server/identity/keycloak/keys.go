package keycloak

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"
)

// KeySetFetcher is satisfied by *Client.
type KeySetFetcher interface {
	FetchKeySet(ctx context.Context) (*jose.JSONWebKeySet, error)
}

// KeyCache holds the realm's signing keys. The set is fetched on first use;
// concurrent first callers share one fetch. Failed fetches are not cached.
type KeyCache struct {
	fetcher KeySetFetcher
	group   singleflight.Group

	mu   sync.RWMutex
	keys *jose.JSONWebKeySet
}

func NewKeyCache(f KeySetFetcher) *KeyCache {
	return &KeyCache{fetcher: f}
}

// SigningKey returns the public key for kid. It satisfies auth.KeyLookup.
func (k *KeyCache) SigningKey(ctx context.Context, kid string) (any, error) {
	set, err := k.keySet(ctx)
	if err != nil {
		return nil, err
	}

	for _, key := range set.Key(kid) {
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		if !key.IsPublic() {
			key = key.Public()
		}
		return key.Key, nil
	}
	return nil, fmt.Errorf("%w: unknown key id %q", common.ErrInvalidSignature, kid)
}

// Invalidate drops the cached set so the next lookup refetches it.
func (k *KeyCache) Invalidate() {
	k.mu.Lock()
	k.keys = nil
	k.mu.Unlock()
}

func (k *KeyCache) cached() *jose.JSONWebKeySet {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys
}

func (k *KeyCache) keySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	if set := k.cached(); set != nil {
		return set, nil
	}

	// The fetch outlives the caller that started it; the HTTP client timeout
	// bounds it instead.
	fetchCtx := context.WithoutCancel(ctx)
	ch := k.group.DoChan("jwks", func() (any, error) {
		if set := k.cached(); set != nil {
			return set, nil
		}
		set, err := k.fetcher.FetchKeySet(fetchCtx)
		if err != nil {
			return nil, err
		}
		k.mu.Lock()
		k.keys = set
		k.mu.Unlock()
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*jose.JSONWebKeySet), nil
	}
}
