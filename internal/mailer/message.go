// Package mailer renders citizen notifications and delivers them over SMTP.
package mailer

import (
	"context"
	"net/mail"
	"strings"

	dErrors "gmq/pkg/domain-errors"
)

// Message is one outgoing email. Attachment is optional; when present
// AttachmentName must be set too.
type Message struct {
	To             string
	From           string
	Subject        string
	Text           string
	HTML           string
	AttachmentName string
	Attachment     []byte
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks the required fields.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.To) == "":
		return incorrectParams("to", "recipient is required")
	case strings.TrimSpace(m.From) == "":
		return incorrectParams("from", "sender is required")
	case strings.TrimSpace(m.Subject) == "":
		return incorrectParams("subject", "subject is required")
	case m.Text == "" && m.HTML == "":
		return incorrectParams("text", "a text or html body is required")
	case len(m.Attachment) > 0 && m.AttachmentName == "":
		return incorrectParams("attachment_name", "attachment name is required")
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return incorrectParams("to", "recipient is not a valid address")
	}
	return nil
}

func incorrectParams(field, msg string) error {
	return dErrors.NewField(dErrors.AppIncorrectEmailParams, field, "incorrect email parameters: "+msg)
}
