// Package llm wraps chat-completion providers behind one small interface.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/newsletter/internal/config"
)

// Request is a single system+user chat completion.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer returns the model's text answer for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	defaultGroqModel   = "llama-3.1-8b-instant"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiModel = "gemini-1.5-flash"
)

// New builds the completer for the configured provider.
// It returns nil without error when no API key is set.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	if !cfg.LLMConfigured() {
		return nil, nil
	}

	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch cfg.LLMProvider {
	case config.ProviderGroq:
		return NewOpenAICompatible(cfg.LLMAPIKey, orDefault(cfg.LLMBaseURL, groqBaseURL), orDefault(cfg.LLMModel, defaultGroqModel), timeout), nil
	case config.ProviderOpenAI:
		return NewOpenAICompatible(cfg.LLMAPIKey, cfg.LLMBaseURL, orDefault(cfg.LLMModel, defaultOpenAIModel), timeout), nil
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg.LLMAPIKey, orDefault(cfg.LLMModel, defaultGeminiModel), timeout)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
