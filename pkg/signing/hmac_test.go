package signing

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	sig := Sign("secret", "payload")
	assert.True(t, Verify("secret", "payload", sig))
	assert.False(t, Verify("secret", "payload", "deadbeef"))
	assert.False(t, Verify("wrong-secret", "payload", sig))
}

func TestVerifyRejectsLengthMismatchWithoutPanicking(t *testing.T) {
	assert.False(t, Verify("secret", "payload", "abc"))
}

func buildSignedRequest(secret, body string, ts time.Time) (sigHeader, tsHeader string) {
	tsHeader = strconv.FormatInt(ts.Unix(), 10)
	signed := fmt.Sprintf("%s:%s", tsHeader, body)
	sigHeader = "v1=" + Sign(secret, signed)
	return sigHeader, tsHeader
}

func TestVerifyWebhookAcceptsFreshRequest(t *testing.T) {
	sigHeader, tsHeader := buildSignedRequest("whsec", `{"type":"bot.status_change"}`, time.Now())
	res := VerifyWebhook("whsec", `{"type":"bot.status_change"}`, sigHeader, tsHeader)
	assert.True(t, res.OK)
}

func TestVerifyWebhookBoundary(t *testing.T) {
	// 299s old accepts; exactly 300s old rejects.
	sigHeader, tsHeader := buildSignedRequest("whsec", "body", time.Now().Add(-299*time.Second))
	res := VerifyWebhook("whsec", "body", sigHeader, tsHeader)
	assert.True(t, res.OK)

	sigHeader, tsHeader = buildSignedRequest("whsec", "body", time.Now().Add(-300*time.Second))
	res = VerifyWebhook("whsec", "body", sigHeader, tsHeader)
	assert.False(t, res.OK)
	assert.Equal(t, "stale timestamp", res.Reason)
}

func TestVerifyWebhookRejectsFutureReplay(t *testing.T) {
	sigHeader, tsHeader := buildSignedRequest("whsec", "body", time.Now().Add(10*time.Minute))
	res := VerifyWebhook("whsec", "body", sigHeader, tsHeader)
	assert.False(t, res.OK)
	assert.Equal(t, "stale timestamp", res.Reason)
}

func TestVerifyWebhookRejectsTamperedBody(t *testing.T) {
	sigHeader, tsHeader := buildSignedRequest("whsec", "original", time.Now())
	res := VerifyWebhook("whsec", "tampered", sigHeader, tsHeader)
	assert.False(t, res.OK)
	assert.Equal(t, "signature mismatch", res.Reason)
}

func TestVerifyWebhookMissingHeaders(t *testing.T) {
	res := VerifyWebhook("whsec", "body", "", "")
	assert.False(t, res.OK)
}
