package channels

import (
	"context"
	"fmt"

	goslack "github.com/slack-go/slack"
)

// SlackDMPoster resolves a direct-message channel for a Slack user id and
// posts into it. Satisfied by externalclients/slackclient.Client.
type SlackDMPoster interface {
	OpenDM(ctx context.Context, slackUserID string) (channelID string, err error)
	PostMessage(ctx context.Context, channelID, text string, blocks []goslack.Block) error
}

// SlackDM delivers to a user's Slack direct-message channel.
type SlackDM struct {
	client SlackDMPoster
}

// NewSlackDM builds a SlackDM driver.
func NewSlackDM(client SlackDMPoster) *SlackDM {
	return &SlackDM{client: client}
}

// Deliver implements Driver.
func (d *SlackDM) Deliver(ctx context.Context, msg Message) error {
	if msg.SlackUserID == "" {
		return fmt.Errorf("slack_dm notification missing slack_user_id")
	}
	channelID, err := d.client.OpenDM(ctx, msg.SlackUserID)
	if err != nil {
		return fmt.Errorf("opening slack dm: %w", err)
	}
	return d.client.PostMessage(ctx, channelID, truncate(msg.Text, slackTextLimit), buildBlocks(msg))
}
