package clientcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresTokenStore persists OAuth token pairs in the oauth_tokens table,
// keyed by the same provider key TokenGuard callers pass to AccessToken
// (e.g. "meetingbot:org-123", "ats:org-123").
type PostgresTokenStore struct {
	db *sqlx.DB
}

// NewPostgresTokenStore wraps a connection pool.
func NewPostgresTokenStore(db *sqlx.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

// Load implements TokenStore.
func (s *PostgresTokenStore) Load(ctx context.Context, key string) (TokenPair, error) {
	var pair TokenPair
	err := s.db.GetContext(ctx, &pair, `
		SELECT access_token, refresh_token, expires_at
		FROM oauth_tokens WHERE provider_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenPair{}, fmt.Errorf("no oauth token stored for %q", key)
		}
		return TokenPair{}, fmt.Errorf("loading oauth token: %w", err)
	}
	return pair, nil
}

// Save implements TokenStore.
func (s *PostgresTokenStore) Save(ctx context.Context, key string, pair TokenPair) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (provider_key, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_key) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at`,
		key, pair.AccessToken, pair.RefreshToken, pair.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("saving oauth token: %w", err)
	}
	return nil
}
