package recording

import (
	"context"
	"fmt"
	"time"
)

// QuotaStore is the subset of Store used by QuotaChecker.
type QuotaStore interface {
	CountBotDeploymentsThisMonth(ctx context.Context, orgID string, now time.Time) (int, error)
}

// QuotaChecker enforces a per-tenant monthly cap on bot deployments. The
// window is the calendar month in UTC; a tenant's count resets at the
// first deployment created on or after the 1st of the month, not on a
// rolling 30-day basis.
type QuotaChecker struct {
	store        QuotaStore
	monthlyLimit func(orgID string) int
}

// NewQuotaChecker builds a QuotaChecker. limitFn resolves an org's monthly
// bot-deployment cap (plan-tier dependent); a nil limitFn means unlimited.
func NewQuotaChecker(store QuotaStore, limitFn func(orgID string) int) *QuotaChecker {
	return &QuotaChecker{store: store, monthlyLimit: limitFn}
}

// CheckAndReserve reports whether orgID may deploy another bot this month.
// It does not itself increment any counter — the count is derived from
// existing bot_deployments rows, so the reservation is implicit in the
// deployment insert that the caller performs immediately after a true
// result. Reports false with a human-readable reason when exhausted.
func (q *QuotaChecker) CheckAndReserve(ctx context.Context, orgID string) (bool, string, error) {
	if q.monthlyLimit == nil {
		return true, "", nil
	}
	limit := q.monthlyLimit(orgID)
	if limit <= 0 {
		return true, "", nil
	}

	count, err := q.store.CountBotDeploymentsThisMonth(ctx, orgID, time.Now().UTC())
	if err != nil {
		return false, "", fmt.Errorf("counting bot deployments: %w", err)
	}
	if count >= limit {
		return false, fmt.Sprintf("monthly quota of %d bot deployments reached", limit), nil
	}
	return true, "", nil
}
