package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender delivers a rendered message to one recipient.
type Sender interface {
	Deliver(ctx context.Context, recipient string, msg Message) error
}

// MailerConfig holds SMTP settings.
type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Mailer sends email over SMTP.
type Mailer struct {
	config MailerConfig
	dialer *gomail.Dialer
}

// NewMailer creates a Mailer. Empty credentials mean an unauthenticated relay.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("notify: missing smtp host")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("notify: missing smtp port")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("notify: missing from address")
	}
	return &Mailer{
		config: cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Deliver sends msg with an HTML body and a plain-text alternative.
func (m *Mailer) Deliver(ctx context.Context, recipient string, msg Message) error {
	if recipient == "" {
		return fmt.Errorf("no recipients specified")
	}
	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}

	out := gomail.NewMessage()
	out.SetAddressHeader("From", m.config.From, m.config.FromName)
	out.SetHeader("To", recipient)
	out.SetHeader("Subject", msg.Subject)
	if msg.HTMLBody != "" {
		out.SetBody("text/html", msg.HTMLBody)
		if msg.TextBody != "" {
			out.AddAlternative("text/plain", msg.TextBody)
		}
	} else {
		out.SetBody("text/plain", msg.TextBody)
	}
	return m.dialer.DialAndSend(out)
}
