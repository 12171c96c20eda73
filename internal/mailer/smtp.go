package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPTransport delivers mail with go-mail, dialing per message so that settings
// changes apply immediately.
type SMTPTransport struct {
	Timeout time.Duration
}

// Send implements Transport.
func (t SMTPTransport) Send(ctx context.Context, cfg SMTPConfig, env Envelope) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(cfg.FromName, cfg.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(env.To); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(env.Subject)
	msg.SetBodyString(mail.TypeTextHTML, env.HTML)

	port := cfg.Port
	if port == 0 {
		port = 587
	}
	timeout := t.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
