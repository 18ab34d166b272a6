package newsletter

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidWhatsApp = errors.New("invalid WhatsApp number")
	ErrInvalidTopics   = errors.New("no topics of interest")
)

var userMessages = map[error]string{
	ErrInvalidName:     "Please enter a valid name.",
	ErrInvalidEmail:    "Please enter a valid email address.",
	ErrInvalidWhatsApp: "Please enter a valid WhatsApp number with country code (e.g., +1234567890).",
	ErrInvalidTopics:   "Please enter at least one topic of interest.",
}

// UserMessage returns the form hint for a validation error, or "" when
// err is not one.
func UserMessage(err error) string {
	for target, msg := range userMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return ""
}

var (
	emailRe       = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonDialableRe = regexp.MustCompile(`[^\d+]`)
)

func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// ValidWhatsApp accepts numbers with 10 to 15 digits or '+' once
// separators and other characters are dropped.
func ValidWhatsApp(number string) bool {
	cleaned := nonDialableRe.ReplaceAllString(number, "")
	return len(cleaned) >= 10 && len(cleaned) <= 15
}

var sanitizer = strings.NewReplacer("<", "&lt;", ">", "&gt;", `"`, "&quot;")

// Sanitize escapes characters that could inject markup.
func Sanitize(s string) string {
	return sanitizer.Replace(s)
}

// SubscribeInput is the raw subscription form.
type SubscribeInput struct {
	Name     string
	Email    string
	WhatsApp string
	Topics   string
	Style    Style
}

// Normalize trims, lower-cases and sanitizes the input, then validates it.
func (in SubscribeInput) Normalize() (SubscribeInput, error) {
	out := SubscribeInput{
		Name:     Sanitize(strings.TrimSpace(in.Name)),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		WhatsApp: strings.TrimSpace(in.WhatsApp),
		Topics:   Sanitize(strings.TrimSpace(in.Topics)),
		Style:    in.Style.WithDefaults(),
	}

	switch {
	case len([]rune(out.Name)) < 2:
		return out, ErrInvalidName
	case !ValidEmail(out.Email):
		return out, ErrInvalidEmail
	case !ValidWhatsApp(out.WhatsApp):
		return out, ErrInvalidWhatsApp
	case out.Topics == "":
		return out, ErrInvalidTopics
	}
	return out, nil
}
