package notification

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// EmailChannel отправляет HTML-письма через SMTP.
type EmailChannel struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseTLS
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	return &EmailChannel{cfg: cfg, dialer: d}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if msg.Recipient.Email == "" {
		return ErrNoAddress
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.cfg.From)
	m.SetHeader("To", msg.Recipient.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	// gomail не принимает context, поэтому ждём отправку или отмену ctx
	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
