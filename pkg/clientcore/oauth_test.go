package clientcore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	pairs map[string]TokenPair
}

func (m *memStore) Load(_ context.Context, key string) (TokenPair, error) {
	return m.pairs[key], nil
}
func (m *memStore) Save(_ context.Context, key string, pair TokenPair) error {
	m.pairs[key] = pair
	return nil
}

type stubRefresher struct {
	calls int
	err   error
}

func (r *stubRefresher) Refresh(_ context.Context, _ string) (TokenPair, error) {
	r.calls++
	if r.err != nil {
		return TokenPair{}, r.err
	}
	return TokenPair{AccessToken: "new-token", RefreshToken: "new-refresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestTokenGuardSkipsRefreshWhenFresh(t *testing.T) {
	store := &memStore{pairs: map[string]TokenPair{
		"org-1": {AccessToken: "still-good", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	refresher := &stubRefresher{}
	guard := NewTokenGuard(store, refresher)

	token, err := guard.AccessToken(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "still-good", token)
	assert.Equal(t, 0, refresher.calls)
}

func TestTokenGuardRefreshesWithinSkewWindow(t *testing.T) {
	store := &memStore{pairs: map[string]TokenPair{
		"org-1": {AccessToken: "expiring", ExpiresAt: time.Now().Add(1 * time.Minute)},
	}}
	refresher := &stubRefresher{}
	guard := NewTokenGuard(store, refresher)

	token, err := guard.AccessToken(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "new-token", store.pairs["org-1"].AccessToken)
}

func TestTokenGuardSurfacesTerminalErrorOnRefreshFailure(t *testing.T) {
	store := &memStore{pairs: map[string]TokenPair{
		"org-1": {AccessToken: "expired", ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	refresher := &stubRefresher{err: fmt.Errorf("provider rejected refresh token")}
	guard := NewTokenGuard(store, refresher)

	_, err := guard.AccessToken(context.Background(), "org-1")
	assert.Error(t, err)
}
