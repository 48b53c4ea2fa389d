package channels

import (
	"context"
	"encoding/json"
	"fmt"
)

// InAppStore inserts a row into the in-app notifications table. Satisfied
// by pkg/notifications.Store.
type InAppStore interface {
	InsertInAppNotification(ctx context.Context, userID, orgID, notificationType string, payload []byte) error
}

// inAppPayload is the JSON shape persisted in in_app_notifications.payload.
// Only the fields a client actually renders are kept; the rest of Message
// is Slack/email-specific.
type inAppPayload struct {
	Title      string `json:"title,omitempty"`
	Body       string `json:"body,omitempty"`
	Text       string `json:"text,omitempty"`
	HeaderText string `json:"header_text,omitempty"`
}

// defaultNotificationType is used when a producer enqueues without one.
const defaultNotificationType = "generic"

// InApp delivers by inserting a row a client polls or subscribes to;
// success is the row insert itself, there is no further transport.
type InApp struct {
	store InAppStore
}

// NewInApp builds an InApp driver.
func NewInApp(store InAppStore) *InApp {
	return &InApp{store: store}
}

// Deliver implements Driver.
func (a *InApp) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(inAppPayload{
		Title:      msg.Title,
		Body:       msg.Body,
		Text:       msg.Text,
		HeaderText: msg.HeaderText,
	})
	if err != nil {
		return fmt.Errorf("encoding in-app notification payload: %w", err)
	}

	notificationType := msg.NotificationType
	if notificationType == "" {
		notificationType = defaultNotificationType
	}

	return a.store.InsertInAppNotification(ctx, msg.UserID, msg.OrgID, notificationType, payload)
}
