// Package notify delivers rendered alert emails. Delivery is an opaque
// external operation behind the Notifier interface so the worker can be
// tested without a mail server.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
)

// Notifier sends one HTML email.
type Notifier interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPConfig configures the real sender.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPNotifier sends via plain-auth SMTP.
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) Send(_ context.Context, to, subject, html string) error {
	auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Pass, n.cfg.Host)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n%s\r\n%s",
		n.cfg.From, to, subject, mime, html))

	return smtp.SendMail(addr, auth, n.cfg.From, []string{to}, msg)
}

// LogNotifier stands in when SMTP is not configured: it logs the
// rendered message instead of sending it, so local setups still show
// what would have gone out.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("[email] to=%s subject=%q (smtp disabled, not sent)", to, subject)
	return nil
}
