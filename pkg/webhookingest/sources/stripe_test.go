package sources

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signStripe(secret, body string, ts time.Time) string {
	timestamp := fmt.Sprintf("%d", ts.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(body))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%s,v1=%s", timestamp, sig)
}

func TestStripeVerifyAcceptsValidSignature(t *testing.T) {
	s := NewStripe("whsec_test", nil)
	body := `{"id":"evt_1","type":"invoice.paid"}`

	r := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	r.Header.Set("Stripe-Signature", signStripe("whsec_test", body, time.Now()))

	require.NoError(t, s.Verify(r, []byte(body)))
}

func TestStripeVerifyRejectsWrongSecret(t *testing.T) {
	s := NewStripe("whsec_test", nil)
	body := `{"id":"evt_1","type":"invoice.paid"}`

	r := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	r.Header.Set("Stripe-Signature", signStripe("whsec_wrong", body, time.Now()))

	assert.Error(t, s.Verify(r, []byte(body)))
}

func TestStripeVerifyRejectsStaleTimestamp(t *testing.T) {
	s := NewStripe("whsec_test", nil)
	body := `{"id":"evt_1","type":"invoice.paid"}`

	r := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	r.Header.Set("Stripe-Signature", signStripe("whsec_test", body, time.Now().Add(-10*time.Minute)))

	assert.Error(t, s.Verify(r, []byte(body)))
}

func TestStripeParseIdentityExtractsTypeAndID(t *testing.T) {
	s := NewStripe("whsec_test", nil)
	eventType, externalID, err := s.ParseIdentity([]byte(`{"id":"evt_1","type":"invoice.paid"}`))
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", eventType)
	assert.Equal(t, "evt_1", externalID)
}
