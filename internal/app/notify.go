package app

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Notifier delivers outbound mail. Callers treat it as fire-and-forget:
// a failed send is logged, never propagated into ledger state.
type Notifier interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPNotifier sends through a plain SMTP endpoint.
type SMTPNotifier struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func NewSMTPNotifier(addr, from, user, pass string) *SMTPNotifier {
	n := &SMTPNotifier{Addr: addr, From: from}
	if user != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		n.Auth = smtp.PlainAuth("", user, pass, host)
	}
	return n
}

func (n *SMTPNotifier) Send(_ context.Context, to []string, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.From, strings.Join(to, ", "), subject, body)
	if err := smtp.SendMail(n.Addr, n.Auth, n.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("%w: smtp send: %v", ErrExternalService, err)
	}
	return nil
}

// LogNotifier is the fallback when no SMTP endpoint is configured; it keeps
// the notification path observable in development.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Send(_ context.Context, to []string, subject, _ string) error {
	n.Logger.Info("notification (mail disabled)",
		zap.Strings("to", to), zap.String("subject", subject))
	return nil
}
