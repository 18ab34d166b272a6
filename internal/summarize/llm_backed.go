package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/cache"
	"github.com/deusflow/newsletter/internal/llm"
	"github.com/deusflow/newsletter/internal/metrics"
	"github.com/deusflow/newsletter/internal/news"
	"github.com/deusflow/newsletter/internal/ratelimit"
)

const (
	articleSystemPrompt = "You are a helpful assistant that summarizes news articles in simple, clear language."
	articleInstruction  = "Summarize this news article in 2-3 clear, simple sentences that anyone can understand. \nAvoid jargon and technical terms. Make it engaging and informative."

	overallSystemPrompt = "You are a news editor who writes concise, engaging daily news briefings."
	overallInstruction  = "Based on these news articles, write a brief 3-4 sentence executive summary highlighting the main themes and most important stories of the day. Make it engaging and informative."

	maxContentRunes = 4000
	maxBriefRunes   = 200
	maxBriefs       = 10
)

var errBudgetExhausted = errors.New("LLM request budget exhausted")

// LLMBacked asks a language model for summaries and falls back to the
// deterministic text whenever the model cannot answer.
type LLMBacked struct {
	completer llm.Completer
	budget    *ratelimit.Budget
	cache     *cache.Cache[string]
	log       logrus.FieldLogger
}

func (s *LLMBacked) Summarize(ctx context.Context, article news.Article, prompt string) (string, error) {
	content := article.Summary
	if article.Content != "" {
		content = truncate(article.Content, maxContentRunes)
	}

	req := llm.Request{
		System:      articleSystemPrompt,
		User:        articlePrompt(article.Title, content, prompt),
		MaxTokens:   150,
		Temperature: 0.7,
	}
	out, err := s.complete(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.log.WithFields(logrus.Fields{"title": article.Title, "error": err}).Warn("LLM summary failed, using fallback")
		metrics.Summaries.WithLabelValues("fallback").Inc()
		return SimpleSummary(article.Summary), nil
	}
	return out, nil
}

func (s *LLMBacked) Overall(ctx context.Context, articles []news.SummarizedArticle, prompt string) (string, error) {
	if len(articles) == 0 {
		return NoArticlesSummary, nil
	}

	req := llm.Request{
		System:      overallSystemPrompt,
		User:        overallPrompt(articles, prompt),
		MaxTokens:   200,
		Temperature: 0.7,
	}
	out, err := s.complete(ctx, req)
	if err != nil {
		s.log.WithError(err).Warn("LLM overall summary failed, using fallback")
		return templatedOverall(articles), nil
	}
	return out, nil
}

// complete goes through cache and budget before calling the model.
func (s *LLMBacked) complete(ctx context.Context, req llm.Request) (string, error) {
	key := cache.Key(req.System, req.User)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			metrics.Summaries.WithLabelValues("cache").Inc()
			if s.budget != nil {
				s.budget.RecordCacheHit()
			}
			return v, nil
		}
	}

	if s.budget != nil && !s.budget.Allow() {
		return "", errBudgetExhausted
	}

	raw, err := s.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	out := SanitizeAIText(raw)
	if out == "" {
		return "", fmt.Errorf("empty model output")
	}

	metrics.Summaries.WithLabelValues("llm").Inc()
	if s.cache != nil {
		s.cache.Set(key, out)
	}
	return out, nil
}

func articlePrompt(title, content, userPrompt string) string {
	var b strings.Builder
	b.WriteString(articleInstruction)
	if p := strings.TrimSpace(userPrompt); p != "" {
		b.WriteString("\n\nUser prompt: ")
		b.WriteString(p)
	}
	fmt.Fprintf(&b, "\n\nTitle: %s\n\nContent: %s\n\nSummary:", title, content)
	return b.String()
}

func overallPrompt(articles []news.SummarizedArticle, userPrompt string) string {
	n := len(articles)
	if n > maxBriefs {
		n = maxBriefs
	}
	briefs := make([]string, 0, n)
	for i, a := range articles[:n] {
		title := a.Title
		if title == "" {
			title = "Untitled"
		}
		briefs = append(briefs, fmt.Sprintf("%d. %s: %s", i+1, title, truncate(a.DisplaySummary(), maxBriefRunes)))
	}

	var b strings.Builder
	b.WriteString(overallInstruction)
	if p := strings.TrimSpace(userPrompt); p != "" {
		b.WriteString("\n\nUser prompt: ")
		b.WriteString(p)
	}
	fmt.Fprintf(&b, "\n\nArticles:\n%s\n\nOverall Summary:", strings.Join(briefs, "\n"))
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
