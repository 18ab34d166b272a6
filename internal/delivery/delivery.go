// Package delivery fans a generated newsletter out to recipients over
// email and WhatsApp, collecting per-channel outcomes.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/email"
	"github.com/deusflow/newsletter/internal/metrics"
	"github.com/deusflow/newsletter/internal/newsletter"
)

const (
	ChannelEmail         = "email"
	ChannelWhatsApp      = "whatsapp"
	ChannelWhatsAppMedia = "whatsapp-media"

	// StaticPrefix is the URL path under which artifacts are served.
	StaticPrefix = "/static/newsletters/"

	defaultMessageSummary = "Here is your personalized newsletter."
	messageSignature      = "Sent via Newsletter Bot."
)

var ErrSMTPNotConfigured = errors.New("SMTP not configured")

// EmailSender is satisfied by *email.Mailer.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments ...string) error
}

// Messenger is satisfied by *whatsapp.Client.
type Messenger interface {
	SendText(ctx context.Context, number, message string) error
	SendMedia(ctx context.Context, number string, files []string, caption string) error
}

// Result lists the channels that worked and a readable line per failure.
type Result struct {
	Successes []string `json:"successes"`
	Errors    []string `json:"errors"`
}

func (r *Result) success(channel string) {
	r.Successes = append(r.Successes, channel)
	metrics.RecordDelivery(channel, true)
}

func (r *Result) failure(channel, msg string) {
	r.Errors = append(r.Errors, msg)
	metrics.RecordDelivery(channel, false)
}

// Merge appends other's outcomes to r.
func (r *Result) Merge(other Result) {
	r.Successes = append(r.Successes, other.Successes...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Channels selects what SendSelected attempts.
type Channels struct {
	Email    bool
	WhatsApp bool
}

type Dispatcher struct {
	mail          EmailSender // nil when SMTP is not configured
	messenger     Messenger
	publicBaseURL string
	log           logrus.FieldLogger
}

// NewDispatcher wires the channels. Pass a nil mail sender to record
// "SMTP not configured" instead of attempting email.
func NewDispatcher(mail EmailSender, messenger Messenger, publicBaseURL string, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		mail:          mail,
		messenger:     messenger,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
	}
}

// SendToRecipient tries email, WhatsApp text and WhatsApp media independently.
// It always returns; failures end up in Result.Errors.
func (d *Dispatcher) SendToRecipient(ctx context.Context, n *newsletter.Newsletter, r *newsletter.Recipient) Result {
	var res Result
	log := d.log.WithFields(logrus.Fields{"recipient": r.ID, "newsletter": n.ID})

	if d.mail == nil {
		res.failure(ChannelEmail, ErrSMTPNotConfigured.Error())
	} else if err := d.sendEmail(ctx, n, r); err != nil {
		log.WithFields(logrus.Fields{"channel": ChannelEmail, "error": err}).Warn("Delivery failed")
		res.failure(ChannelEmail, fmt.Sprintf("Email to %s failed: %v", r.Email, err))
	} else {
		res.success(ChannelEmail)
	}

	if err := d.messenger.SendText(ctx, r.WhatsAppNumber, d.Message(n)); err != nil {
		log.WithFields(logrus.Fields{"channel": ChannelWhatsApp, "error": err}).Warn("Delivery failed")
		res.failure(ChannelWhatsApp, fmt.Sprintf("WhatsApp to %s failed: %v", r.WhatsAppNumber, err))
	} else {
		res.success(ChannelWhatsApp)
	}

	if files := existingFiles(n.PDFPath, n.AudioPath); len(files) > 0 {
		if err := d.messenger.SendMedia(ctx, r.WhatsAppNumber, files, n.Title); err != nil {
			log.WithFields(logrus.Fields{"channel": ChannelWhatsAppMedia, "error": err}).Warn("Delivery failed")
			res.failure(ChannelWhatsAppMedia, fmt.Sprintf("WhatsApp media to %s failed: %v", r.WhatsAppNumber, err))
		} else {
			res.success(ChannelWhatsAppMedia)
		}
	}

	log.Infof("Delivered via %v with %d error(s)", res.Successes, len(res.Errors))
	return res
}

// SendToAll runs SendToRecipient for each recipient and flattens the results.
func (d *Dispatcher) SendToAll(ctx context.Context, n *newsletter.Newsletter, recipients []newsletter.Recipient) Result {
	var all Result
	for i := range recipients {
		all.Merge(d.SendToRecipient(ctx, n, &recipients[i]))
	}
	return all
}

// SendSelected re-sends an existing newsletter on the chosen channels only.
// WhatsApp here means the text message; media is not re-uploaded.
func (d *Dispatcher) SendSelected(ctx context.Context, n *newsletter.Newsletter, r *newsletter.Recipient, ch Channels) Result {
	var res Result

	if ch.Email {
		err := ErrSMTPNotConfigured
		if d.mail != nil {
			err = d.sendEmail(ctx, n, r)
		}
		if err != nil {
			res.failure(ChannelEmail, fmt.Sprintf("Email failed: %v", err))
		} else {
			res.success(ChannelEmail)
		}
	}

	if ch.WhatsApp {
		if err := d.messenger.SendText(ctx, r.WhatsAppNumber, d.Message(n)); err != nil {
			res.failure(ChannelWhatsApp, fmt.Sprintf("WhatsApp failed: %v", err))
		} else {
			res.success(ChannelWhatsApp)
		}
	}
	return res
}

// Message is the WhatsApp text for a newsletter.
func (d *Dispatcher) Message(n *newsletter.Newsletter) string {
	summary := n.OverallSummary
	if summary == "" {
		summary = defaultMessageSummary
	}
	parts := []string{n.Title, summary}
	if n.PDFPath != "" {
		parts = append(parts, "PDF: "+d.PublicURL(n.PDFPath))
	}
	if n.AudioPath != "" {
		parts = append(parts, "Audio: "+d.PublicURL(n.AudioPath))
	}
	parts = append(parts, messageSignature)
	return strings.Join(parts, "\n\n")
}

// PublicURL maps an artifact path to where the HTTP server exposes it.
func (d *Dispatcher) PublicURL(path string) string {
	return d.publicBaseURL + StaticPrefix + filepath.Base(path)
}

func (d *Dispatcher) sendEmail(ctx context.Context, n *newsletter.Newsletter, r *newsletter.Recipient) error {
	body := email.BuildBody(n.Title, n.OverallSummary, n.TopicCount())
	return d.mail.Send(ctx, r.Email, n.Title, body, n.PDFPath, n.AudioPath)
}

// existingFiles returns absolute paths of the given files that exist.
func existingFiles(paths ...string) []string {
	var files []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			files = append(files, abs)
		}
	}
	return files
}
