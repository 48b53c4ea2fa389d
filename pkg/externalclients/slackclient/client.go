// Package slackclient wraps slack-go/slack for DM resolution and message
// posting, used by the slack_dm and slack_channel notification drivers.
package slackclient

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

// Client posts messages to Slack on behalf of a tenant's installed app.
type Client struct {
	api *slack.Client
}

// New builds a client bound to a single workspace's bot token.
func New(botToken string) *Client {
	return &Client{api: slack.New(botToken)}
}

// Block is the minimal Block Kit shape this system builds. Truncation of
// text fields to Slack's documented limits happens in the caller
// (pkg/notifications/channels/slackdm.go) so this client stays a thin
// transport wrapper.
type Block = slack.Block

// OpenDM resolves (or reuses) a direct-message channel with slackUserID.
func (c *Client) OpenDM(ctx context.Context, slackUserID string) (channelID string, err error) {
	channel, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{slackUserID},
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "opening slack DM")
	}
	return channel.ID, nil
}

// PostMessage posts text plus blocks to a channel (DM or regular channel —
// Slack treats both as a channel id post).
func (c *Client) PostMessage(ctx context.Context, channelID, text string, blocks []Block) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, fmt.Sprintf("posting to slack channel %s", channelID))
	}
	return nil
}
