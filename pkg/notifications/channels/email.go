package channels

import (
	"context"

	"github.com/revloop/orchestrator/pkg/externalclients/mailer"
)

// EmailSender accepts a message for delivery; success means "accepted",
// not "delivered to mailbox". Satisfied by externalclients/mailer.Client.
type EmailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Email hands off to an external transactional mailer.
type Email struct {
	client EmailSender
}

// NewEmail builds an Email driver.
func NewEmail(client EmailSender) *Email {
	return &Email{client: client}
}

// Deliver implements Driver.
func (e *Email) Deliver(ctx context.Context, msg Message) error {
	return e.client.Send(ctx, mailer.Message{
		ToAddress: msg.ToAddress,
		ToName:    msg.ToName,
		Subject:   msg.Subject,
		PlainText: msg.Body,
		HTML:      msg.HTML,
	})
}
