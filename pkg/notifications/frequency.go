package notifications

import (
	"context"
	"fmt"
	"time"
)

// hourlyDailyCap is the (per-hour, per-day) ceiling for a preferred
// frequency, applied to every priority except urgent.
type hourlyDailyCap struct {
	perHour int
	perDay  int
}

var frequencyCaps = map[PreferredFrequency]hourlyDailyCap{
	FrequencyHigh:     {perHour: 4, perDay: 15},
	FrequencyModerate: {perHour: 2, perDay: 8},
	FrequencyLow:      {perHour: 1, perDay: 3},
}

// cooldownByPriority is the minimum spacing from the last send to the same
// user on any channel, before fatigue multiplies it.
var cooldownByPriority = map[Priority]time.Duration{
	PriorityUrgent: 5 * time.Minute,
	PriorityHigh:   15 * time.Minute,
	PriorityNormal: 30 * time.Minute,
	PriorityLow:    60 * time.Minute,
}

// fatigueMultiplier scales cooldowns up as a user's fatigue score rises.
func fatigueMultiplier(level int) float64 {
	switch {
	case level < 20:
		return 1.0
	case level < 40:
		return 1.5
	case level < 60:
		return 2.0
	case level < 80:
		return 3.0
	default:
		return 3.0
	}
}

// FrequencyStore is the subset of Store used by FrequencyLimiter.
type FrequencyStore interface {
	CountSentSince(ctx context.Context, userID string, priority Priority, since time.Time) (int, error)
	LastSendTime(ctx context.Context, userID string) (*time.Time, error)
	GetUserMetrics(ctx context.Context, userID, orgID string) (*UserMetrics, error)
}

// FrequencyLimiter enforces the per-(user,priority) hour/day caps, the
// per-priority fatigue-scaled cooldown, and the urgent-bypasses-hourly-cap
// carve-out.
type FrequencyLimiter struct {
	store FrequencyStore
}

// NewFrequencyLimiter builds a FrequencyLimiter.
func NewFrequencyLimiter(store FrequencyStore) *FrequencyLimiter {
	return &FrequencyLimiter{store: store}
}

// Check reports whether a notification at the given priority may be sent
// to user now. When blocked, nextAllowedAt is the earliest retry time.
func (f *FrequencyLimiter) Check(ctx context.Context, userID, orgID string, priority Priority) (allowed bool, nextAllowedAt time.Time, err error) {
	metrics, err := f.store.GetUserMetrics(ctx, userID, orgID)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("loading user metrics for frequency check: %w", err)
	}

	cooldown := time.Duration(float64(cooldownByPriority[priority]) * fatigueMultiplier(metrics.NotificationFatigueLevel))
	lastSend, err := f.store.LastSendTime(ctx, userID)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("resolving last send time: %w", err)
	}
	if lastSend != nil {
		if gate := lastSend.Add(cooldown); time.Now().Before(gate) {
			return false, gate, nil
		}
	}

	if priority == PriorityUrgent {
		return true, time.Time{}, nil
	}

	limits, ok := frequencyCaps[metrics.PreferredNotificationFrequency]
	if !ok {
		limits = frequencyCaps[FrequencyModerate]
	}

	now := time.Now()
	hourCount, err := f.store.CountSentSince(ctx, userID, priority, now.Add(-time.Hour))
	if err != nil {
		return false, time.Time{}, fmt.Errorf("counting hourly sends: %w", err)
	}
	if hourCount >= limits.perHour {
		return false, now.Add(time.Hour), nil
	}

	dayCount, err := f.store.CountSentSince(ctx, userID, priority, now.Add(-24*time.Hour))
	if err != nil {
		return false, time.Time{}, fmt.Errorf("counting daily sends: %w", err)
	}
	if dayCount >= limits.perDay {
		return false, now.Add(24 * time.Hour), nil
	}

	return true, time.Time{}, nil
}
