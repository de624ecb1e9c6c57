// Package mail delivers notification emails.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"finanzen/internal/log"
)

// SMTPMailer sends through a plain SMTP relay, typically a local one.
type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(addr, from string) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes the mail to the log instead of sending it. Used when no
// SMTP relay is configured, for local runs.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	return &LogMailer{logger: logger.WithComponent(log.ComponentNotifier)}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "Mail (not sent, no SMTP relay configured)",
		"to", to,
		"subject", subject,
		"body", body)
	return nil
}
