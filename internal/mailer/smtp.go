package mailer

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"gmq/internal/platform/config"
	dErrors "gmq/pkg/domain-errors"
)

// SMTPMailer delivers through a single SMTP relay, one connection per message.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
	dialer   net.Dialer
	now      func() time.Time
}

// NewSMTP creates a mailer for cfg.
func NewSMTP(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.From,
		dialer:   net.Dialer{Timeout: 30 * time.Second},
		now:      time.Now,
	}
}

// From is the configured sender address.
func (m *SMTPMailer) From() string { return m.from }

// Send validates and delivers msg. A missing From falls back to the
// configured sender. Every transport failure is a mail_delivery error.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = m.from
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := Build(msg, m.now())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build email")
	}
	if err := m.deliver(ctx, msg.From, msg.To, body); err != nil {
		return dErrors.Wrap(err, dErrors.CodeMailDelivery, "deliver email to "+m.host)
	}
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, from, to string, body []byte) error {
	conn, err := m.dialer.DialContext(ctx, "tcp", net.JoinHostPort(m.host, strconv.Itoa(m.port)))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if m.user != "" {
		if err := c.Auth(smtp.PlainAuth("", m.user, m.password, m.host)); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
