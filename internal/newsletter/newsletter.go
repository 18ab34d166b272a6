// Package newsletter holds the persisted domain records and subscriber input rules.
package newsletter

import (
	"strings"
	"time"

	"github.com/deusflow/newsletter/internal/news"
)

const (
	DefaultPrimaryColor   = "#1a73e8"
	DefaultSecondaryColor = "#4285f4"
	DefaultFontStyle      = "modern"
)

// Style controls how a rendered PDF looks.
type Style struct {
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	FontStyle      string `json:"font_style"`
}

func DefaultStyle() Style {
	return Style{
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		FontStyle:      DefaultFontStyle,
	}
}

// WithDefaults fills empty fields from DefaultStyle.
func (s Style) WithDefaults() Style {
	d := DefaultStyle()
	if s.PrimaryColor == "" {
		s.PrimaryColor = d.PrimaryColor
	}
	if s.SecondaryColor == "" {
		s.SecondaryColor = d.SecondaryColor
	}
	if s.FontStyle == "" {
		s.FontStyle = d.FontStyle
	}
	return s
}

// Newsletter is one generation event. It is never modified after creation.
type Newsletter struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Topics         string    `json:"topics"`
	OverallSummary string    `json:"overall_summary"`
	PDFPath        string    `json:"pdf_path"`
	AudioPath      string    `json:"audio_path"`
	CreatedAt      time.Time `json:"created_at"`
}

// TopicCount counts comma-separated topic entries.
func (n Newsletter) TopicCount() int {
	return len(strings.Split(n.Topics, ","))
}

type Recipient struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	WhatsAppNumber string    `json:"whatsapp_number"`
	Topics         string    `json:"topics"`
	Style          Style     `json:"style"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r Recipient) TopicList() []string {
	return news.ParseTopics(r.Topics)
}

// Preferences are the shared settings of the "generate for everyone" flow.
type Preferences struct {
	Topics    string    `json:"topics"`
	Prompt    string    `json:"prompt"`
	Style     Style     `json:"style"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Preferences) TopicList() []string {
	return news.ParseTopics(p.Topics)
}
