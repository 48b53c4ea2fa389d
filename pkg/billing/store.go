// Package billing tracks each org's subscription plan and maps Stripe's
// subscription lifecycle events onto it. Stripe itself is treated as a
// black-box collaborator (spec §1 Non-goals) — this package only persists
// the plan state that pkg/recording's quota checker reads.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

// Store persists org plan state.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// OrgByStripeCustomer resolves an org id from a Stripe customer id.
func (s *Store) OrgByStripeCustomer(ctx context.Context, customerID string) (string, error) {
	var orgID string
	err := s.db.GetContext(ctx, &orgID, `SELECT id FROM orgs WHERE stripe_customer_id = $1`, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.New(apperrors.KindNotFound, "no org linked to stripe customer")
		}
		return "", fmt.Errorf("resolving org by stripe customer: %w", err)
	}
	return orgID, nil
}

// UpdatePlan sets an org's plan tier and subscription status.
func (s *Store) UpdatePlan(ctx context.Context, orgID, tier, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orgs SET plan_tier = $1, plan_status = $2 WHERE id = $3`,
		tier, status, orgID,
	)
	if err != nil {
		return fmt.Errorf("updating org plan: %w", err)
	}
	return nil
}

// PlanTier returns an org's current plan tier, used to resolve its monthly
// bot-deployment quota.
func (s *Store) PlanTier(ctx context.Context, orgID string) (string, error) {
	var tier string
	err := s.db.GetContext(ctx, &tier, `SELECT plan_tier FROM orgs WHERE id = $1`, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.New(apperrors.KindNotFound, "org not found")
		}
		return "", fmt.Errorf("reading org plan tier: %w", err)
	}
	return tier, nil
}
