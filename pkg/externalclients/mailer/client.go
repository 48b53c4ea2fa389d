// Package mailer sends transactional email notifications through SendGrid.
package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/revloop/orchestrator/pkg/apperrors"
	appconfig "github.com/revloop/orchestrator/pkg/config"
)

// Client sends email through SendGrid's HTTP API.
type Client struct {
	rest       *sendgrid.Client
	fromAddress string
	fromName    string
	enabled     bool
}

// New builds a mailer client from the application's mailer configuration.
// When cfg.Enabled is false, the returned client accepts Send calls as
// successful no-ops — callers don't need to branch on whether email is
// configured in this environment.
func New(cfg *appconfig.MailerConfig, apiKey string) *Client {
	if !cfg.Enabled {
		return &Client{enabled: false}
	}
	return &Client{
		rest:        sendgrid.NewSendClient(apiKey),
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		enabled:     true,
	}
}

// Message is a single transactional email to send.
type Message struct {
	ToAddress string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Send dispatches a message. Success means "accepted for delivery" — it
// does not wait for actual mailbox delivery.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.enabled {
		return nil
	}

	from := mail.NewEmail(c.fromName, c.fromAddress)
	to := mail.NewEmail(msg.ToName, msg.ToAddress)
	m := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainText, msg.HTML)

	resp, err := c.rest.SendWithContext(ctx, m)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "sendgrid request failed")
	}
	if resp.StatusCode >= 300 {
		return apperrors.New(apperrors.KindUpstreamUnavailable,
			fmt.Sprintf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body))
	}
	return nil
}
