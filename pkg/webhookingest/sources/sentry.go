package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/revloop/orchestrator/pkg/eventlog"
	"github.com/revloop/orchestrator/pkg/signing"
)

// TicketEvent is the canonicalized shape of an error-tracking issue event,
// routed to a target (Slack channel, on-call sequence, ...) by routing rules.
type TicketEvent struct {
	IssueID     string
	Title       string
	Release     string
	Environment string
	Level       string
	Culprit     string
	URL         string
}

// TicketHandler reacts to a canonicalized ticket event, implemented by
// pkg/routing's Sentry router.
type TicketHandler interface {
	HandleTicketEvent(ctx context.Context, ev TicketEvent) error
}

// SentryBridge adapts an internally-proxied error-tracking webhook to the
// pipeline. The upstream error tracker is not signed directly against this
// service; a bridge re-signs forwarded issue payloads with the shared HMAC
// scheme before they reach this endpoint.
type SentryBridge struct {
	secret  string
	handler TicketHandler
}

// NewSentryBridge builds the error-tracking ticket-routing source.
func NewSentryBridge(secret string, handler TicketHandler) *SentryBridge {
	return &SentryBridge{secret: secret, handler: handler}
}

func (s *SentryBridge) Name() string { return "sentry-bridge" }

func (s *SentryBridge) Verify(r *http.Request, body []byte) error {
	result := signing.VerifyWebhook(s.secret, string(body), r.Header.Get("X-Signature"), r.Header.Get("X-Timestamp"))
	if !result.OK {
		return fmt.Errorf("sentry-bridge webhook: %s", result.Reason)
	}
	return nil
}

type sentryBridgePayload struct {
	ID    string `json:"id"`
	Issue struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Culprit     string `json:"culprit"`
		Level       string `json:"level"`
		Permalink   string `json:"permalink"`
		FirstRelease struct {
			Version string `json:"version"`
		} `json:"firstRelease"`
	} `json:"issue"`
	Environment string `json:"environment"`
}

func (s *SentryBridge) ParseIdentity(body []byte) (string, string, error) {
	var p sentryBridgePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", "", fmt.Errorf("decoding sentry-bridge payload: %w", err)
	}
	externalID := firstNonEmpty(p.ID, p.Issue.ID)
	return "issue_event", externalID, nil
}

func (s *SentryBridge) ResolveOrg(ctx context.Context, body []byte) (string, error) {
	return "", nil // this bridge's payload carries no org_id; the ticket handler works against the single org it was built with
}

func (s *SentryBridge) Process(ctx context.Context, event *eventlog.Event) error {
	var p sentryBridgePayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("decoding sentry-bridge payload: %w", err)
	}
	return s.handler.HandleTicketEvent(ctx, TicketEvent{
		IssueID:     firstNonEmpty(p.ID, p.Issue.ID),
		Title:       p.Issue.Title,
		Release:     p.Issue.FirstRelease.Version,
		Environment: p.Environment,
		Level:       p.Issue.Level,
		Culprit:     p.Issue.Culprit,
		URL:         p.Issue.Permalink,
	})
}
