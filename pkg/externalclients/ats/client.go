// Package ats wraps the CRM/ATS integration. Its caller here is
// routing.ATSTicketDispatcher, which files tickets for routed Sentry
// issues in the customer's system of record.
package ats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/clientcore"
)

// Client is the CRM/ATS HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *clientcore.TenantLimiter
	retry      clientcore.RetryPolicy
	tokens     *clientcore.TokenGuard
}

// New builds a Client.
func New(baseURL string, timeout time.Duration, limiter *clientcore.TenantLimiter, tokens *clientcore.TokenGuard) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    limiter,
		retry:      clientcore.DefaultRetryPolicy(),
		tokens:     tokens,
	}
}

// ActivityLog records one sequence-step outcome against a CRM record.
type ActivityLog struct {
	RecordID string `json:"record_id"`
	Type     string `json:"type"`
	Body     string `json:"body"`
}

// LogActivity pushes an activity record for orgID's CRM instance.
func (c *Client) LogActivity(ctx context.Context, orgID string, activity ActivityLog) error {
	release, err := c.limiter.Acquire(ctx, orgID)
	if err != nil {
		return fmt.Errorf("acquiring tenant concurrency slot: %w", err)
	}
	defer release()

	token, err := c.tokens.AccessToken(ctx, orgID)
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encoding activity log: %w", err)
	}

	var statusCode int
	var responseBody []byte
	doErr := clientcore.Do(ctx, c.retry, func(ctx context.Context, attempt int) (clientcore.Attempt, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/activities", bytes.NewReader(bodyBytes))
		if err != nil {
			return clientcore.Attempt{}, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return clientcore.Attempt{Err: err}, nil
		}
		defer resp.Body.Close()
		responseBody, _ = io.ReadAll(resp.Body)
		statusCode = resp.StatusCode
		return clientcore.Attempt{StatusCode: resp.StatusCode, RetryAfterValue: resp.Header.Get("Retry-After")}, nil
	})
	if doErr != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, doErr, "CRM activity log request failed")
	}
	if statusCode >= 400 {
		return apperrors.New(apperrors.KindUpstreamUnavailable, fmt.Sprintf("CRM returned status %d: %s", statusCode, responseBody))
	}
	return nil
}
