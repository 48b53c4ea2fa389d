package channels

import (
	"context"
	"fmt"

	goslack "github.com/slack-go/slack"
)

// SlackChannelPoster posts directly to a channel id, no DM resolution.
type SlackChannelPoster interface {
	PostMessage(ctx context.Context, channelID, text string, blocks []goslack.Block) error
}

// SlackChannel delivers to a fixed Slack channel named in the payload.
type SlackChannel struct {
	client SlackChannelPoster
}

// NewSlackChannel builds a SlackChannel driver.
func NewSlackChannel(client SlackChannelPoster) *SlackChannel {
	return &SlackChannel{client: client}
}

// Deliver implements Driver.
func (d *SlackChannel) Deliver(ctx context.Context, msg Message) error {
	if msg.SlackChannelID == "" {
		return fmt.Errorf("slack_channel notification missing slack_channel_id")
	}
	return d.client.PostMessage(ctx, msg.SlackChannelID, truncate(msg.Text, slackTextLimit), buildBlocks(msg))
}
