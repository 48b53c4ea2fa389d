package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/revloop/orchestrator/pkg/eventlog"
	"github.com/revloop/orchestrator/pkg/signing"
)

// BotEvent is the canonicalized shape of a meeting-bot lifecycle webhook.
// Providers vary in field naming (bot_id vs botId vs id); rawPayload fields
// are probed in a fixed fallback order so the rest of the system only ever
// sees this shape.
type BotEvent struct {
	BotID     string
	Status    string
	EventType string
	Error     string
}

// BotDeploymentHandler reacts to a canonicalized bot lifecycle event. It is
// implemented by pkg/recording so webhookingest has no dependency on the
// recording state machine.
type BotDeploymentHandler interface {
	HandleBotEvent(ctx context.Context, ev BotEvent) error
}

// MeetingBaaS adapts the meeting-recorder bot's webhook to the pipeline.
type MeetingBaaS struct {
	secret  string
	handler BotDeploymentHandler
}

// NewMeetingBaaS builds the meeting-recorder bot source.
func NewMeetingBaaS(secret string, handler BotDeploymentHandler) *MeetingBaaS {
	return &MeetingBaaS{secret: secret, handler: handler}
}

func (m *MeetingBaaS) Name() string { return "meeting-recorder" }

func (m *MeetingBaaS) Verify(r *http.Request, body []byte) error {
	signature := firstNonEmpty(r.Header.Get("svix-signature"), r.Header.Get("x-provider-signature"))
	result := signing.VerifyWebhook(m.secret, string(body), signature, r.Header.Get("svix-timestamp"))
	if !result.OK {
		return fmt.Errorf("meeting-recorder webhook: %s", result.Reason)
	}
	return nil
}

type meetingBaaSPayload struct {
	Event  string `json:"event"`
	Type   string `json:"type"`
	BotID  string `json:"bot_id"`
	ID     string `json:"id"`
	Status struct {
		Code string `json:"code"`
	} `json:"status"`
	Data struct {
		Error string `json:"error"`
	} `json:"data"`
}

func (m *MeetingBaaS) ParseIdentity(body []byte) (string, string, error) {
	var p meetingBaaSPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", "", fmt.Errorf("decoding meeting-recorder payload: %w", err)
	}
	eventType := firstNonEmpty(p.Event, p.Type, "unknown")
	externalID := firstNonEmpty(p.ID, p.BotID+":"+p.Status.Code)
	return eventType, externalID, nil
}

func (m *MeetingBaaS) ResolveOrg(ctx context.Context, body []byte) (string, error) {
	return "", nil // resolved by the recording lookup during Process
}

func (m *MeetingBaaS) Process(ctx context.Context, event *eventlog.Event) error {
	var p meetingBaaSPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("decoding meeting-recorder payload: %w", err)
	}
	return m.handler.HandleBotEvent(ctx, BotEvent{
		BotID:     firstNonEmpty(p.BotID, p.ID),
		Status:    p.Status.Code,
		EventType: firstNonEmpty(p.Event, p.Type),
		Error:     p.Data.Error,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
