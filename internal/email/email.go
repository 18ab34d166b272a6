// Package email sends newsletters over SMTP with gomail.
package email

import (
	"context"
	"fmt"
	"html"
	"os"
	"strings"

	"gopkg.in/gomail.v2"
)

// Mailer delivers one HTML email with optional file attachments.
type Mailer struct {
	from string
	send func(*gomail.Message) error
}

// NewMailer authenticates against host:port as from.
func NewMailer(host string, port int, from, password string) *Mailer {
	d := gomail.NewDialer(host, port, from, password)
	return &Mailer{
		from: from,
		send: func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// Send attaches every path that exists on disk; missing files are skipped.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string, attachments ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	for _, path := range attachments {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		msg.Attach(path)
	}

	if err := m.send(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// BuildBody renders the HTML email body for a newsletter.
func BuildBody(title, overallSummary string, topicCount int) string {
	summary := overallSummary
	if summary == "" {
		summary = "Here is your personalized newsletter."
	}

	var b strings.Builder
	b.WriteString(`<html><body style="font-family: Helvetica, Arial, sans-serif; color: #202124;">`)
	fmt.Fprintf(&b, `<h1 style="color: #1a73e8;">%s</h1>`, html.EscapeString(title))
	fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(summary))
	fmt.Fprintf(&b, `<p>This edition covers %d topic(s). The full newsletter is attached as a PDF, with an audio version for listening on the go.</p>`, topicCount)
	b.WriteString(`<p style="color: #5f6368; font-size: 12px;">Generated by Your Personal Newsletter App</p>`)
	b.WriteString(`</body></html>`)
	return b.String()
}
