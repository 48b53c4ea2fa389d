// Package auth resolves the caller identity and role of an inbound request:
// a platform service-role bearer token, an end-user session, or a
// cron-triggered scheduled entry point.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

// Mode identifies how a request authenticated.
type Mode string

const (
	ModeServiceRole Mode = "service_role"
	ModeUser        Mode = "user"
	ModeCron        Mode = "cron"
)

// Principal is the resolved identity of an authenticated request.
type Principal struct {
	Mode            Mode
	UserID          string // set when Mode == ModeUser
	IsPlatformAdmin bool
}

// UserLookup resolves a bearer token to a user principal. Implemented by the
// session store; kept as an interface so auth has no storage dependency.
type UserLookup interface {
	LookupBearerToken(ctx context.Context, token string) (userID string, isPlatformAdmin bool, ok error)
}

// Config holds the secrets authenticate compares against.
type Config struct {
	ServiceRoleKey string
	CronSecret     string // empty disables all cron entry points (fail-closed)
}

// Authenticate resolves the Principal for an inbound request. Every failure
// mode returns apperrors.KindUnauthorized — auth failures are terminal, never retried.
func Authenticate(ctx context.Context, cfg Config, lookup UserLookup, r *http.Request) (Principal, error) {
	if r.Header.Get("X-Cron-Secret") != "" {
		return authenticateCron(cfg, r)
	}

	token, ok := bearerToken(r)
	if !ok {
		return Principal{}, apperrors.New(apperrors.KindUnauthorized, "missing bearer token")
	}

	if cfg.ServiceRoleKey != "" && constantTimeEqual(token, cfg.ServiceRoleKey) {
		return Principal{Mode: ModeServiceRole, IsPlatformAdmin: true}, nil
	}

	if lookup == nil {
		return Principal{}, apperrors.New(apperrors.KindUnauthorized, "no user lookup configured")
	}
	userID, isAdmin, err := lookup.LookupBearerToken(ctx, token)
	if err != nil || userID == "" {
		return Principal{}, apperrors.New(apperrors.KindUnauthorized, "invalid bearer token")
	}

	return Principal{Mode: ModeUser, UserID: userID, IsPlatformAdmin: isAdmin}, nil
}

// authenticateCron enforces fail-closed behavior: a missing CronSecret
// rejects every cron-triggered entry point, never falls back to "allow".
func authenticateCron(cfg Config, r *http.Request) (Principal, error) {
	if cfg.CronSecret == "" {
		return Principal{}, apperrors.New(apperrors.KindUnauthorized, "cron secret not configured")
	}
	provided := r.Header.Get("X-Cron-Secret")
	if !constantTimeEqual(provided, cfg.CronSecret) {
		return Principal{}, apperrors.New(apperrors.KindUnauthorized, "invalid cron secret")
	}
	return Principal{Mode: ModeCron}, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimPrefix(h, prefix)
	if token == "" {
		return "", false
	}
	return token, true
}

// constantTimeEqual compares two secrets for exact equality without a
// length- or content-dependent short-circuit, so a bearer-token check never
// leaks substring information through timing.
func constantTimeEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return hmac.Equal(ah[:], bh[:])
}

// OrgRoleLookup resolves a user's role within an org. Implemented by the
// membership store.
type OrgRoleLookup interface {
	RoleInOrg(ctx context.Context, orgID, userID string) (role string, ok bool, err error)
}

// RequireOrgRole checks that userID is a member of orgID with one of allowedRoles.
func RequireOrgRole(ctx context.Context, lookup OrgRoleLookup, orgID, userID string, allowedRoles []string) error {
	role, ok, err := lookup.RoleInOrg(ctx, orgID, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, err, "role lookup failed")
	}
	if !ok {
		return apperrors.New(apperrors.KindForbidden, "not a member of this organization")
	}
	for _, allowed := range allowedRoles {
		if role == allowed {
			return nil
		}
	}
	return apperrors.New(apperrors.KindForbidden, "role does not permit this operation")
}
