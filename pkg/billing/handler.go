package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// PlanStore is the subset of Store used by Handler.
type PlanStore interface {
	OrgByStripeCustomer(ctx context.Context, customerID string) (string, error)
	UpdatePlan(ctx context.Context, orgID, tier, status string) error
}

// Handler reacts to Stripe subscription lifecycle events, implementing
// sources.BillingHandler.
type Handler struct {
	store PlanStore
}

// NewHandler builds a Handler over the given store.
func NewHandler(store PlanStore) *Handler {
	return &Handler{store: store}
}

type subscriptionObject struct {
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			Price struct {
				Nickname string `json:"nickname"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// HandleStripeEvent implements sources.BillingHandler. Only subscription
// lifecycle events affect plan state; all other event types (invoices,
// payment methods, ...) are accepted and ignored.
func (h *Handler) HandleStripeEvent(ctx context.Context, eventType string, object json.RawMessage) error {
	switch eventType {
	case "customer.subscription.created", "customer.subscription.updated":
		return h.applySubscription(ctx, object, "")
	case "customer.subscription.deleted":
		return h.applySubscription(ctx, object, "canceled")
	default:
		slog.Debug("ignoring stripe event type", "event_type", eventType)
		return nil
	}
}

func (h *Handler) applySubscription(ctx context.Context, object json.RawMessage, forcedStatus string) error {
	var sub subscriptionObject
	if err := json.Unmarshal(object, &sub); err != nil {
		return fmt.Errorf("decoding stripe subscription object: %w", err)
	}
	if sub.Customer == "" {
		return fmt.Errorf("stripe subscription event missing customer id")
	}

	orgID, err := h.store.OrgByStripeCustomer(ctx, sub.Customer)
	if err != nil {
		return err
	}

	status := sub.Status
	if forcedStatus != "" {
		status = forcedStatus
	}

	tier := "trial"
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price.Nickname != "" {
		tier = sub.Items.Data[0].Price.Nickname
	}

	return h.store.UpdatePlan(ctx, orgID, tier, status)
}

// MonthlyBotQuota maps a plan tier to its monthly bot-deployment cap, for
// wiring into recording.NewQuotaChecker. Zero means unlimited.
func MonthlyBotQuota(tier string) int {
	switch tier {
	case "starter":
		return 20
	case "growth":
		return 100
	case "scale":
		return 0 // unlimited
	default: // "trial" and anything unrecognized
		return 5
	}
}
