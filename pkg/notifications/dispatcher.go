package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/revloop/orchestrator/pkg/notifications/channels"
)

// dispatchBatchSize is how many items one Tick claims, bounding worst-case
// tick duration.
const dispatchBatchSize = 50

// dispatchStaleThreshold is how long a processing lock may be held before
// another worker is allowed to reclaim the item (a crash mid-dispatch).
const dispatchStaleThreshold = 10 * time.Minute

// dispatchRetryBackoff spaces out automatic retries after a delivery
// failure that hasn't exhausted max_attempts.
const dispatchRetryBackoff = time.Minute

// DispatcherStore is the subset of Store used by Dispatcher.
type DispatcherStore interface {
	ClaimBatch(ctx context.Context, workerID string, limit int) ([]NotificationQueueItem, error)
	MarkSent(ctx context.Context, item NotificationQueueItem) error
	MarkFailed(ctx context.Context, item NotificationQueueItem, reason string, backoff time.Duration) error
	MarkDelayed(ctx context.Context, id string, nextAllowedAt time.Time) error
	ReclaimStale(ctx context.Context, staleThreshold time.Duration) (int, error)
	CancelStale(ctx context.Context, staleThreshold time.Duration) (int, error)
	RequeueDelayed(ctx context.Context) (int, error)
}

// DispatchResult summarizes one tick for logging/metrics.
type DispatchResult struct {
	Claimed   int
	Sent      int
	Delayed   int
	Failed    int
	Reclaimed int
	Cancelled int
}

// Dispatcher claims due notifications, gates them through FrequencyLimiter,
// and hands survivors to the channel driver registered for their channel.
type Dispatcher struct {
	store          DispatcherStore
	limiter        *FrequencyLimiter
	drivers        map[Channel]channels.Driver
	workerID       string
	staleThreshold time.Duration
}

// NewDispatcher builds a Dispatcher. drivers need not cover every Channel
// constant; an item routed to a channel with no registered driver fails
// with a descriptive error rather than panicking.
func NewDispatcher(store DispatcherStore, limiter *FrequencyLimiter, drivers map[Channel]channels.Driver, workerID string) *Dispatcher {
	return &Dispatcher{store: store, limiter: limiter, drivers: drivers, workerID: workerID, staleThreshold: dispatchStaleThreshold}
}

// Tick runs one claim-gate-dispatch pass plus stale reclamation and
// cancellation, per the documented worker algorithm.
func (d *Dispatcher) Tick(ctx context.Context) (DispatchResult, error) {
	if _, err := d.store.RequeueDelayed(ctx); err != nil {
		return DispatchResult{}, fmt.Errorf("requeuing delayed notifications: %w", err)
	}

	batch, err := d.store.ClaimBatch(ctx, d.workerID, dispatchBatchSize)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("claiming notification batch: %w", err)
	}

	result := DispatchResult{Claimed: len(batch)}
	for _, item := range batch {
		switch outcome := d.processOne(ctx, item); outcome {
		case outcomeSent:
			result.Sent++
		case outcomeDelayed:
			result.Delayed++
		case outcomeFailed:
			result.Failed++
		}
	}

	reclaimed, err := d.store.ReclaimStale(ctx, d.staleThreshold)
	if err != nil {
		slog.Error("reclaiming stale notifications failed", "error", err)
	}
	result.Reclaimed = reclaimed

	cancelled, err := d.store.CancelStale(ctx, d.staleThreshold)
	if err != nil {
		slog.Error("cancelling stale notifications failed", "error", err)
	}
	result.Cancelled = cancelled

	return result, nil
}

type dispatchOutcome int

const (
	outcomeSent dispatchOutcome = iota
	outcomeDelayed
	outcomeFailed
)

func (d *Dispatcher) processOne(ctx context.Context, item NotificationQueueItem) dispatchOutcome {
	allowed, nextAllowedAt, err := d.limiter.Check(ctx, item.UserID, item.OrgID, item.Priority)
	if err != nil {
		slog.Error("frequency check failed", "notification_id", item.ID, "error", err)
		_ = d.store.MarkFailed(ctx, item, err.Error(), dispatchRetryBackoff)
		return outcomeFailed
	}

	if !allowed {
		downgraded := item.Priority.downgrade()
		if downgraded != item.Priority {
			allowed, nextAllowedAt, err = d.limiter.Check(ctx, item.UserID, item.OrgID, downgraded)
			if err != nil {
				slog.Error("frequency check failed on downgrade", "notification_id", item.ID, "error", err)
				_ = d.store.MarkFailed(ctx, item, err.Error(), dispatchRetryBackoff)
				return outcomeFailed
			}
		}
	}

	if !allowed {
		if err := d.store.MarkDelayed(ctx, item.ID, nextAllowedAt); err != nil {
			slog.Error("marking notification delayed failed", "notification_id", item.ID, "error", err)
			return outcomeFailed
		}
		return outcomeDelayed
	}

	driver, ok := d.drivers[item.Channel]
	if !ok {
		_ = d.store.MarkFailed(ctx, item, fmt.Sprintf("no driver registered for channel %q", item.Channel), dispatchRetryBackoff)
		return outcomeFailed
	}

	msg, err := decodeMessage(item)
	if err != nil {
		_ = d.store.MarkFailed(ctx, item, err.Error(), dispatchRetryBackoff)
		return outcomeFailed
	}

	if err := driver.Deliver(ctx, msg); err != nil {
		slog.Warn("notification delivery failed", "notification_id", item.ID, "channel", item.Channel, "error", err)
		_ = d.store.MarkFailed(ctx, item, err.Error(), dispatchRetryBackoff)
		return outcomeFailed
	}

	if err := d.store.MarkSent(ctx, item); err != nil {
		slog.Error("marking notification sent failed", "notification_id", item.ID, "error", err)
		return outcomeFailed
	}
	return outcomeSent
}

// payloadFields mirrors channels.Message with JSON tags, the documented
// shape producers populate NotificationQueueItem.Payload with.
type payloadFields struct {
	Title          string          `json:"title"`
	Text           string          `json:"text"`
	HeaderText     string          `json:"header_text"`
	ButtonText     string          `json:"button_text"`
	ButtonURL      string          `json:"button_url"`
	Fields         []fieldPayload  `json:"fields"`
	Subject        string          `json:"subject"`
	Body           string          `json:"body"`
	HTML           string          `json:"html"`
	ToAddress      string          `json:"to_address"`
	ToName         string          `json:"to_name"`
	SlackUserID    string          `json:"slack_user_id"`
	SlackChannelID string          `json:"slack_channel_id"`
}

type fieldPayload struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func decodeMessage(item NotificationQueueItem) (channels.Message, error) {
	var p payloadFields
	if len(item.Payload) > 0 {
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return channels.Message{}, fmt.Errorf("decoding notification payload: %w", err)
		}
	}

	fields := make([]channels.Field, 0, len(p.Fields))
	for _, f := range p.Fields {
		fields = append(fields, channels.Field{Label: f.Label, Value: f.Value})
	}

	return channels.Message{
		UserID:           item.UserID,
		OrgID:            item.OrgID,
		NotificationType: item.NotificationType,
		Title:            p.Title,
		Text:             p.Text,
		HeaderText:       p.HeaderText,
		ButtonText:       p.ButtonText,
		ButtonURL:        p.ButtonURL,
		Fields:           fields,
		Subject:          p.Subject,
		Body:             p.Body,
		HTML:             p.HTML,
		ToAddress:        p.ToAddress,
		ToName:           p.ToName,
		SlackUserID:      p.SlackUserID,
		SlackChannelID:   p.SlackChannelID,
	}, nil
}
