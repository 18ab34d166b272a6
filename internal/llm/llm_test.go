package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deusflow/newsletter/internal/config"
)

func TestNew_NoKeyReturnsNil(t *testing.T) {
	c, err := New(context.Background(), &config.Config{LLMProvider: config.ProviderGroq})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil completer without key, got %T", c)
	}
}

func TestNew_GroqDefaults(t *testing.T) {
	c, err := New(context.Background(), &config.Config{LLMProvider: config.ProviderGroq, LLMAPIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	oc, ok := c.(*OpenAICompatible)
	if !ok {
		t.Fatalf("expected *OpenAICompatible, got %T", c)
	}
	if oc.model != defaultGroqModel {
		t.Errorf("model = %q", oc.model)
	}
}

func TestOpenAICompatible_Complete(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  A short answer.  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatible("secret", srv.URL, "test-model", 5*time.Second)
	out, err := c.Complete(context.Background(), Request{
		System:      "be brief",
		User:        "hello",
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "A short answer." {
		t.Errorf("out = %q", out)
	}
	if auth != "Bearer secret" {
		t.Errorf("auth header = %q", auth)
	}
	if got.Model != "test-model" || got.MaxTokens != 150 || got.Temperature != 0.7 {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hello" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAICompatible_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatible("k", srv.URL, "m", time.Second)
	if _, err := c.Complete(context.Background(), Request{User: "x"}); err == nil {
		t.Fatal("expected error on 429")
	}
}
