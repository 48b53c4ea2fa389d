package sources

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/revloop/orchestrator/pkg/eventlog"
)

// BillingHandler reacts to a Stripe event, implemented by the billing/quota
// component that tracks org subscription state.
type BillingHandler interface {
	HandleStripeEvent(ctx context.Context, eventType string, object json.RawMessage) error
}

// Stripe adapts Stripe's billing webhook to the pipeline. Stripe signs with
// its own "t=...,v1=..." scheme rather than the shared signing package's
// "v1={hex}"/X-Timestamp convention, so verification is implemented directly
// against Stripe's documented algorithm instead of reusing pkg/signing.
type Stripe struct {
	secret  string
	handler BillingHandler
}

// NewStripe builds the Stripe billing source.
func NewStripe(secret string, handler BillingHandler) *Stripe {
	return &Stripe{secret: secret, handler: handler}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) Verify(r *http.Request, body []byte) error {
	header := r.Header.Get("Stripe-Signature")
	if header == "" {
		return fmt.Errorf("stripe webhook: missing Stripe-Signature header")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("stripe webhook: malformed Stripe-Signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("stripe webhook: malformed timestamp: %w", err)
	}
	if delta := time.Since(time.Unix(ts, 0)); delta > 5*time.Minute || delta < -5*time.Minute {
		return fmt.Errorf("stripe webhook: stale timestamp")
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("stripe webhook: signature mismatch")
}

type stripePayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (s *Stripe) ParseIdentity(body []byte) (string, string, error) {
	var p stripePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", "", fmt.Errorf("decoding stripe payload: %w", err)
	}
	if p.ID == "" || p.Type == "" {
		return "", "", fmt.Errorf("stripe payload missing id or type")
	}
	return p.Type, p.ID, nil
}

func (s *Stripe) ResolveOrg(ctx context.Context, body []byte) (string, error) {
	return "", nil // resolved from the Stripe customer id to org mapping during Process
}

func (s *Stripe) Process(ctx context.Context, event *eventlog.Event) error {
	var p stripePayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("decoding stripe payload: %w", err)
	}
	return s.handler.HandleStripeEvent(ctx, p.Type, p.Data.Object)
}
