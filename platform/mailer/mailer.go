package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	mail "github.com/go-mail/mail/v2"
)

var ErrNoRecipients = errors.New("email has no recipients")

type Message struct {
	To       []string
	Subject  string
	HtmlBody string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SmtpArgs struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SmtpMailer struct {
	dialer *mail.Dialer
	from   string
}

func NewSmtpMailer(args SmtpArgs) *SmtpMailer {
	d := mail.NewDialer(args.Host, args.Port, args.Username, args.Password)
	if args.Username != "" {
		// Credentials are never sent over a plaintext connection.
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.TLSConfig = &tls.Config{ServerName: args.Host}

	return &SmtpMailer{dialer: d, from: args.From}
}

func (m *SmtpMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	message := mail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", msg.To...)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/html", msg.HtmlBody)

	if err := m.dialer.DialAndSend(message); err != nil {
		slog.Error("smtp send failed", "subject", msg.Subject, "to", msg.To, "error", err)
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

// LogMailer only logs outgoing mail, used when no smtp host is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	slog.Info("smtp disabled, email not sent", "subject", msg.Subject, "to", msg.To)
	return nil
}
