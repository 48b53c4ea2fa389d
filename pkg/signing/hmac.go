// Package signing implements the HMAC sign/verify primitives shared by every
// webhook source that is not independently signed (MeetingBaaS-style bots
// and the internally-proxied Sentry bridge both use this scheme; Stripe's
// signature scheme is verified separately in
// pkg/webhookingest/sources/stripe.go).
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReplayWindow is the maximum absolute distance, in either direction,
// between a webhook's signed timestamp and the receiver's clock before the
// request is rejected as a possible replay.
const ReplayWindow = 300 * time.Second

// Sign returns the lowercase hex-encoded HMAC-SHA256 of payload under secret.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether providedHex is the correct HMAC-SHA256 of payload
// under secret, using a constant-time comparison. Mismatched lengths are
// rejected without attempting a byte-wise compare, so verification time
// depends only on the length of the input, never on where the mismatch is.
func Verify(secret, payload, providedHex string) bool {
	expected := Sign(secret, payload)
	if len(expected) != len(providedHex) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(providedHex))
}

// VerifyResult is the outcome of VerifyWebhook.
type VerifyResult struct {
	OK     bool
	Reason string // set when OK is false
}

// VerifyWebhook checks a "v1={hex}" signature header against
// "{timestamp}:{rawBody}", then rejects requests whose timestamp is more
// than ReplayWindow away from now in either direction (anti-replay).
func VerifyWebhook(secret, rawBody, signatureHeader, timestampHeader string) VerifyResult {
	if signatureHeader == "" || timestampHeader == "" {
		return VerifyResult{OK: false, Reason: "missing signature or timestamp header"}
	}

	providedHex, ok := strings.CutPrefix(signatureHeader, "v1=")
	if !ok {
		return VerifyResult{OK: false, Reason: "malformed signature header"}
	}

	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return VerifyResult{OK: false, Reason: "malformed timestamp header"}
	}

	signedPayload := fmt.Sprintf("%s:%s", timestampHeader, rawBody)
	if !Verify(secret, signedPayload, providedHex) {
		return VerifyResult{OK: false, Reason: "signature mismatch"}
	}

	delta := time.Since(time.Unix(ts, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta >= ReplayWindow {
		return VerifyResult{OK: false, Reason: "stale timestamp"}
	}

	return VerifyResult{OK: true}
}
