// Package channels implements the four notification delivery drivers
// (slack_dm, slack_channel, email, in_app), each built against a narrow
// transport interface so they can be unit tested without a live Slack
// workspace, mailer, or database.
package channels

import "context"

// Field is one label/value pair shown in a Slack Block Kit field element.
type Field struct {
	Label string
	Value string
}

// Message is the channel-agnostic shape a driver renders and delivers.
// Dispatcher decodes a queue item's payload into this before handing it
// to the driver selected by the item's channel.
type Message struct {
	UserID           string
	OrgID            string
	NotificationType string
	Title            string
	Text             string
	HeaderText       string
	ButtonText       string
	ButtonURL        string
	Fields           []Field
	Subject          string
	Body             string
	HTML             string
	ToAddress        string
	ToName           string
	SlackUserID      string
	SlackChannelID   string
}

// Driver delivers one Message over its channel.
type Driver interface {
	Deliver(ctx context.Context, msg Message) error
}
