// Package summarize produces per-article and overall newsletter summaries,
// either through an LLM or with a deterministic text fallback.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/cache"
	"github.com/deusflow/newsletter/internal/llm"
	"github.com/deusflow/newsletter/internal/metrics"
	"github.com/deusflow/newsletter/internal/news"
	"github.com/deusflow/newsletter/internal/ratelimit"
)

const NoArticlesSummary = "No articles available for summary."

// Summarizer is the strategy used by the pipeline. Implementations must be
// safe for concurrent use.
type Summarizer interface {
	Summarize(ctx context.Context, article news.Article, prompt string) (string, error)
	Overall(ctx context.Context, articles []news.SummarizedArticle, prompt string) (string, error)
}

type options struct {
	budget *ratelimit.Budget
	cache  *cache.Cache[string]
	log    logrus.FieldLogger
}

type Option func(*options)

// WithBudget caps provider calls; exhausted budget means fallback text.
func WithBudget(b *ratelimit.Budget) Option {
	return func(o *options) { o.budget = b }
}

// WithCache reuses answers for identical requests.
func WithCache(c *cache.Cache[string]) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger sets the logger for fallback and budget messages.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// New picks the LLM-backed strategy when a completer is available and the
// deterministic one otherwise.
func New(completer llm.Completer, opts ...Option) Summarizer {
	o := options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if completer == nil {
		o.log.Info("No LLM credential configured, using deterministic summaries")
		return Deterministic{}
	}
	return &LLMBacked{
		completer: completer,
		budget:    o.budget,
		cache:     o.cache,
		log:       o.log,
	}
}

// SummarizeArticles summarizes every article in order. An article whose
// summary fails keeps its original summary as the simplified one.
func SummarizeArticles(ctx context.Context, s Summarizer, articles []news.Article, prompt string) []news.SummarizedArticle {
	out := make([]news.SummarizedArticle, 0, len(articles))
	for _, a := range articles {
		simplified, err := s.Summarize(ctx, a, prompt)
		if err != nil {
			logrus.WithFields(logrus.Fields{"title": a.Title, "error": err}).Warn("Error summarizing article")
			metrics.Summaries.WithLabelValues("original").Inc()
			simplified = a.Summary
		}
		out = append(out, news.SummarizedArticle{
			Article:           a,
			OriginalSummary:   a.Summary,
			SimplifiedSummary: simplified,
		})
	}
	return out
}

// GenerateOverallSummary never fails: errors degrade to the templated sentence.
func GenerateOverallSummary(ctx context.Context, s Summarizer, articles []news.SummarizedArticle, prompt string) string {
	if len(articles) == 0 {
		return NoArticlesSummary
	}
	text, err := s.Overall(ctx, articles, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			logrus.WithError(err).Warn("Error generating overall summary")
		}
		return templatedOverall(articles)
	}
	return text
}

// SimpleSummary keeps the first two sentences of summaries longer than 200
// characters and returns shorter ones unchanged.
func SimpleSummary(summary string) string {
	if len([]rune(summary)) <= 200 {
		return summary
	}

	sentences := strings.Split(summary, ".")
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	short := strings.Join(parts, ". ")
	if short != "" && !strings.HasSuffix(short, ".") {
		short += "."
	}
	return short
}

func templatedOverall(articles []news.SummarizedArticle) string {
	n := len(articles)
	if n > 3 {
		n = 3
	}
	titles := make([]string, 0, n)
	for _, a := range articles[:n] {
		titles = append(titles, a.Title)
	}
	return fmt.Sprintf("Today's newsletter covers %d stories including: %s.", len(articles), strings.Join(titles, ", "))
}

// Deterministic summarizes without any external service.
type Deterministic struct{}

// Summarize trims the article's own summary to a few sentences.
func (Deterministic) Summarize(_ context.Context, article news.Article, _ string) (string, error) {
	metrics.Summaries.WithLabelValues("fallback").Inc()
	return SimpleSummary(article.Summary), nil
}

// Overall builds a templated digest naming the leading headlines.
func (Deterministic) Overall(_ context.Context, articles []news.SummarizedArticle, _ string) (string, error) {
	if len(articles) == 0 {
		return NoArticlesSummary, nil
	}
	return templatedOverall(articles), nil
}
