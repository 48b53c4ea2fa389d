// Package oauthprovider implements clientcore.Refresher against a generic
// OAuth2 token endpoint, used for the meeting-bot and ATS integrations'
// refresh-token flow.
package oauthprovider

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"

	"github.com/revloop/orchestrator/pkg/apperrors"
	appconfig "github.com/revloop/orchestrator/pkg/config"
	"github.com/revloop/orchestrator/pkg/clientcore"
)

// Refresher exchanges a refresh token for a new access/refresh pair against
// one provider's token endpoint.
type Refresher struct {
	conf oauth2.Config
}

// New builds a Refresher from a resolved OAuthProviderConfig, reading the
// client id/secret out of the env vars it names.
func New(cfg appconfig.OAuthProviderConfig) (*Refresher, error) {
	clientID := os.Getenv(cfg.ClientIDEnv)
	clientSecret := os.Getenv(cfg.ClientSecretEnv)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("oauth client credentials not configured (%s / %s)", cfg.ClientIDEnv, cfg.ClientSecretEnv)
	}
	return &Refresher{
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
	}, nil
}

// Refresh implements clientcore.Refresher.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (clientcore.TokenPair, error) {
	src := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return clientcore.TokenPair{}, apperrors.Wrap(apperrors.KindUnauthorized, err, "refreshing oauth token")
	}
	out := clientcore.TokenPair{AccessToken: token.AccessToken, ExpiresAt: token.Expiry}
	if token.RefreshToken != "" {
		out.RefreshToken = token.RefreshToken
	} else {
		out.RefreshToken = refreshToken
	}
	return out, nil
}
