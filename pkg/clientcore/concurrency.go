// Package clientcore holds the primitives shared by every external HTTP
// client: a per-tenant concurrency cap, retry/backoff with Retry-After
// honoring, and an OAuth token-refresh guard. Concrete typed clients in
// pkg/externalclients configure these instead of reimplementing their own
// retry loops.
package clientcore

import (
	"context"
	"sync"
)

// TenantLimiter caps concurrent outbound calls per tenant. Waiters queue
// FIFO (Go's sync semaphore-via-channel already preserves send order for a
// single blocked receiver set) and are resumed as slots free.
type TenantLimiter struct {
	mu       sync.Mutex
	perOrg   map[string]chan struct{}
	capacity int
}

// NewTenantLimiter creates a limiter that allows up to capacity concurrent
// calls per org_id.
func NewTenantLimiter(capacity int) *TenantLimiter {
	if capacity <= 0 {
		capacity = 100
	}
	return &TenantLimiter{
		perOrg:   make(map[string]chan struct{}),
		capacity: capacity,
	}
}

func (l *TenantLimiter) slotsFor(orgID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.perOrg[orgID]
	if !ok {
		ch = make(chan struct{}, l.capacity)
		l.perOrg[orgID] = ch
	}
	return ch
}

// Acquire blocks until a slot is free for orgID or ctx is cancelled. The
// returned release function MUST be called exactly once, on every exit
// path, to guarantee the slot is returned.
func (l *TenantLimiter) Acquire(ctx context.Context, orgID string) (release func(), err error) {
	slots := l.slotsFor(orgID)
	select {
	case slots <- struct{}{}:
		return func() { <-slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
