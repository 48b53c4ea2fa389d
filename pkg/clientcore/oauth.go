package clientcore

import (
	"context"
	"sync"
	"time"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

// RefreshSkew is how far ahead of actual expiry a token is proactively refreshed.
const RefreshSkew = 5 * time.Minute

// TokenPair is an OAuth access/refresh token pair with its access-token expiry.
type TokenPair struct {
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// TokenStore persists the current token pair for a tenant/provider.
type TokenStore interface {
	Load(ctx context.Context, key string) (TokenPair, error)
	Save(ctx context.Context, key string, pair TokenPair) error
}

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// TokenGuard ensures every outbound call uses a non-expired access token,
// refreshing proactively under a per-key lock so concurrent callers don't
// race to refresh the same tenant's token.
type TokenGuard struct {
	store     TokenStore
	refresher Refresher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTokenGuard creates a guard backed by store and refresher.
func NewTokenGuard(store TokenStore, refresher Refresher) *TokenGuard {
	return &TokenGuard{store: store, refresher: refresher, locks: make(map[string]*sync.Mutex)}
}

func (g *TokenGuard) lockFor(key string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[key]
	if !ok {
		l = &sync.Mutex{}
		g.locks[key] = l
	}
	return l
}

// AccessToken returns a valid access token for key, refreshing first if the
// stored token expires within RefreshSkew. On refresh failure, returns a
// terminal re-authorization-required error — the caller must not retry.
func (g *TokenGuard) AccessToken(ctx context.Context, key string) (string, error) {
	keyLock := g.lockFor(key)
	keyLock.Lock()
	defer keyLock.Unlock()

	pair, err := g.store.Load(ctx, key)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "loading oauth token")
	}

	if time.Now().Before(pair.ExpiresAt.Add(-RefreshSkew)) {
		return pair.AccessToken, nil
	}

	refreshed, err := g.refresher.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUnauthorized, err, "re-authorization required")
	}

	if err := g.store.Save(ctx, key, refreshed); err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, err, "persisting refreshed oauth token")
	}

	return refreshed.AccessToken, nil
}
