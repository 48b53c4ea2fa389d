// Package meetingbot wraps the meeting-recording bot's control-plane API:
// scheduling a bot join, cancelling a deployment, and fetching a finished
// transcript or its media. Every call goes through the per-tenant
// concurrency limiter in pkg/clientcore; all but FetchMedia also go
// through the shared retry/backoff.
package meetingbot

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

// Client is the meeting-recording bot control-plane HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *clientcore.TenantLimiter
	retry      clientcore.RetryPolicy
	tokens     *clientcore.TokenGuard
}

// New builds a Client. tokens supplies the bearer token for each call via
// clientcore.TokenGuard, keyed by org id.
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

// DeployBotRequest schedules a bot to join a meeting.
type DeployBotRequest struct {
	MeetingURL string    `json:"meeting_url"`
	JoinAt     time.Time `json:"join_at"`
}

// DeployBotResponse carries the provider's bot id, used as the join key for
// all subsequent webhook status events.
type DeployBotResponse struct {
	BotID string `json:"bot_id"`
}

// DeployBot schedules a bot join for orgID's meeting.
func (c *Client) DeployBot(ctx context.Context, orgID string, req DeployBotRequest) (*DeployBotResponse, error) {
	var out DeployBotResponse
	if err := c.call(ctx, orgID, http.MethodPost, "/bots", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelBot cancels a scheduled or in-progress bot deployment.
func (c *Client) CancelBot(ctx context.Context, orgID, botID string) error {
	return c.call(ctx, orgID, http.MethodDelete, "/bots/"+botID, nil, nil)
}

// FetchTranscriptResponse is the provider's transcript payload.
type FetchTranscriptResponse struct {
	Transcript string `json:"transcript"`
}

// FetchTranscript retrieves the transcript for a completed bot session. A
// 404 from the provider is surfaced as apperrors.KindNotFound so the
// transcript worker can distinguish "not ready yet" from a real failure.
func (c *Client) FetchTranscript(ctx context.Context, orgID, botID string) (*FetchTranscriptResponse, error) {
	var out FetchTranscriptResponse
	if err := c.call(ctx, orgID, http.MethodGet, "/bots/"+botID+"/transcript", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMedia streams the raw recording media for a completed bot session.
// Unlike the other calls this bypasses the retry decorator and returns the
// live response body directly to the caller, who is responsible for
// closing it; retrying a partially-consumed stream would require buffering
// the whole recording in memory first.
func (c *Client) FetchMedia(ctx context.Context, orgID, botID string) (string, int64, io.ReadCloser, error) {
	release, err := c.limiter.Acquire(ctx, orgID)
	if err != nil {
		return "", 0, nil, fmt.Errorf("acquiring tenant concurrency slot: %w", err)
	}
	defer release()

	token, err := c.tokens.AccessToken(ctx, orgID)
	if err != nil {
		return "", 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bots/"+botID+"/media", nil)
	if err != nil {
		return "", 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "fetching meeting bot media")
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return "", 0, nil, apperrors.New(apperrors.KindNotFound, "meeting bot media not found")
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return "", 0, nil, apperrors.New(apperrors.KindUpstreamUnavailable, fmt.Sprintf("meeting bot returned status %d fetching media", resp.StatusCode))
	}

	return resp.Header.Get("Content-Type"), resp.ContentLength, resp.Body, nil
}

func (c *Client) call(ctx context.Context, orgID, method, path string, body, out any) error {
	release, err := c.limiter.Acquire(ctx, orgID)
	if err != nil {
		return fmt.Errorf("acquiring tenant concurrency slot: %w", err)
	}
	defer release()

	token, err := c.tokens.AccessToken(ctx, orgID)
	if err != nil {
		return err
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var responseBody []byte
	var statusCode int
	doErr := clientcore.Do(ctx, c.retry, func(ctx context.Context, attempt int) (clientcore.Attempt, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
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

		responseBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return clientcore.Attempt{Err: err}, nil
		}
		statusCode = resp.StatusCode
		return clientcore.Attempt{StatusCode: resp.StatusCode, RetryAfterValue: resp.Header.Get("Retry-After")}, nil
	})
	if doErr != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, doErr, "meeting bot request failed")
	}

	if statusCode == http.StatusNotFound {
		return apperrors.New(apperrors.KindNotFound, "meeting bot resource not found")
	}
	if statusCode >= 400 {
		return apperrors.New(apperrors.KindUpstreamUnavailable, fmt.Sprintf("meeting bot returned status %d", statusCode))
	}

	if out != nil && len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return fmt.Errorf("decoding meeting bot response: %w", err)
		}
	}
	return nil
}
