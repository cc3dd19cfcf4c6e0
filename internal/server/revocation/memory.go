package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// ErrBeyondWindow is returned by Memory.Revoke for tokens that would
// outlive the cache's life window.
var ErrBeyondWindow = errors.New("revocation: token outlives the denylist window")

// Memory keeps revoked IDs in a process-local bigcache. Every entry lives for
// the cache's life window; a token valid for longer cannot be revoked.
// The state is lost on restart and not shared between replicas.
type Memory struct {
	cache  *bigcache.BigCache
	window time.Duration
	now    func() time.Time
}

func NewMemory(lifeWindow time.Duration) (*Memory, error) {
	if lifeWindow <= 0 {
		return nil, errors.New("revocation: life window must be positive")
	}

	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false

	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("revocation: bigcache: %w", err)
	}
	return &Memory{cache: cache, window: lifeWindow, now: time.Now}, nil
}

func (m *Memory) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return errors.New("revocation: empty token id")
	}
	now := m.now()
	if !until.After(now) {
		return nil
	}
	if until.Sub(now) > m.window {
		return fmt.Errorf("%w: expires in %s, window %s", ErrBeyondWindow, until.Sub(now).Round(time.Second), m.window)
	}
	return m.cache.Set(tokenID, []byte{1})
}

func (m *Memory) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	_, err := m.cache.Get(tokenID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bigcache.ErrEntryNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("revocation: %w", err)
	}
}

func (m *Memory) Close() error {
	return m.cache.Close()
}
