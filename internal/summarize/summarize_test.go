package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deusflow/newsletter/internal/cache"
	"github.com/deusflow/newsletter/internal/llm"
	"github.com/deusflow/newsletter/internal/logger"
	"github.com/deusflow/newsletter/internal/news"
	"github.com/deusflow/newsletter/internal/ratelimit"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reqs  []llm.Request
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func longSummary() string {
	s := "The first sentence talks about markets and goes on for a while. " +
		"The second sentence describes the reaction of investors around the world. " +
		"A third sentence adds colour that should be dropped. And a fourth."
	for len(s) < 250 {
		s += " More padding text."
	}
	return s
}

func TestSimpleSummary(t *testing.T) {
	got := SimpleSummary(longSummary())
	want := "The first sentence talks about markets and goes on for a while. The second sentence describes the reaction of investors around the world."
	if got != want {
		t.Errorf("SimpleSummary =\n%q\nwant\n%q", got, want)
	}
	if strings.HasSuffix(got, "..") {
		t.Error("summary must end with exactly one period")
	}

	short := "Short and sweet"
	if SimpleSummary(short) != short {
		t.Error("summaries of 200 characters or fewer must be unchanged")
	}
}

func TestNew_SelectsStrategy(t *testing.T) {
	if _, ok := New(nil, WithLogger(logger.Discard())).(Deterministic); !ok {
		t.Error("nil completer must select the deterministic strategy")
	}
	if _, ok := New(&fakeCompleter{}, WithLogger(logger.Discard())).(*LLMBacked); !ok {
		t.Error("a completer must select the LLM strategy")
	}
}

func TestDeterministic_Overall(t *testing.T) {
	articles := []news.SummarizedArticle{
		{Article: news.Article{Title: "A"}},
		{Article: news.Article{Title: "B"}},
		{Article: news.Article{Title: "C"}},
		{Article: news.Article{Title: "D"}},
	}
	got := GenerateOverallSummary(context.Background(), Deterministic{}, articles, "")
	if got != "Today's newsletter covers 4 stories including: A, B, C." {
		t.Errorf("got %q", got)
	}
	if got := GenerateOverallSummary(context.Background(), Deterministic{}, nil, ""); got != NoArticlesSummary {
		t.Errorf("empty input: got %q", got)
	}
}

func TestLLMBacked_PromptShape(t *testing.T) {
	fc := &fakeCompleter{reply: "Summary: Markets rose today."}
	s := New(fc, WithLogger(logger.Discard()))

	out, err := s.Summarize(context.Background(), news.Article{Title: "Stocks", Summary: "Markets rose."}, "  focus on Europe ")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "Markets rose today." {
		t.Errorf("label not stripped: %q", out)
	}

	req := fc.reqs[0]
	if req.MaxTokens != 150 || req.Temperature != 0.7 {
		t.Errorf("unexpected parameters %+v", req)
	}
	if req.System != articleSystemPrompt {
		t.Errorf("system = %q", req.System)
	}
	for _, want := range []string{"2-3 clear, simple sentences", "\n\nUser prompt: focus on Europe", "\n\nTitle: Stocks", "\n\nContent: Markets rose.", "\n\nSummary:"} {
		if !strings.Contains(req.User, want) {
			t.Errorf("prompt missing %q:\n%s", want, req.User)
		}
	}
}

func TestLLMBacked_UsesScrapedContent(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	s := New(fc, WithLogger(logger.Discard()))

	_, _ = s.Summarize(context.Background(), news.Article{Title: "t", Summary: "short", Content: "full body text"}, "")
	if !strings.Contains(fc.reqs[0].User, "Content: full body text") {
		t.Errorf("scraped content not used:\n%s", fc.reqs[0].User)
	}
}

func TestLLMBacked_FailureFallsBack(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("boom")}
	s := New(fc, WithLogger(logger.Discard()))

	a := news.Article{Title: "t", Summary: longSummary()}
	out, err := s.Summarize(context.Background(), a, "")
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if out != SimpleSummary(a.Summary) {
		t.Errorf("expected deterministic summary, got %q", out)
	}

	articles := []news.SummarizedArticle{{Article: news.Article{Title: "X"}}}
	if got := GenerateOverallSummary(context.Background(), s, articles, ""); got != "Today's newsletter covers 1 stories including: X." {
		t.Errorf("overall fallback = %q", got)
	}
}

func TestLLMBacked_EmptyOutputFallsBack(t *testing.T) {
	fc := &fakeCompleter{reply: "Note: this is a machine translation."}
	s := New(fc, WithLogger(logger.Discard()))

	out, _ := s.Summarize(context.Background(), news.Article{Title: "t", Summary: "kept"}, "")
	if out != "kept" {
		t.Errorf("got %q", out)
	}
}

func TestLLMBacked_OverallPrompt(t *testing.T) {
	fc := &fakeCompleter{reply: "Big day."}
	s := New(fc, WithLogger(logger.Discard()))

	var articles []news.SummarizedArticle
	for i := 0; i < 12; i++ {
		articles = append(articles, news.SummarizedArticle{
			Article:           news.Article{Title: "Story"},
			OriginalSummary:   "orig",
			SimplifiedSummary: strings.Repeat("s", 300),
		})
	}
	articles[0].SimplifiedSummary = ""

	got := GenerateOverallSummary(context.Background(), s, articles, "")
	if got != "Big day." {
		t.Errorf("got %q", got)
	}

	req := fc.reqs[0]
	if req.MaxTokens != 200 || req.System != overallSystemPrompt {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.User, "1. Story: orig\n2. Story: "+strings.Repeat("s", 200)+"\n") {
		t.Errorf("briefs malformed:\n%s", req.User)
	}
	if strings.Contains(req.User, "11. Story") {
		t.Error("only the first 10 articles belong in the prompt")
	}
	if !strings.HasSuffix(req.User, "\n\nOverall Summary:") {
		t.Errorf("prompt must end with the overall label")
	}
}

func TestLLMBacked_CacheAndBudget(t *testing.T) {
	fc := &fakeCompleter{reply: "cached answer"}
	c := cache.New[string](time.Hour, 0)
	defer c.Close()
	budget := ratelimit.NewBudget(1, logger.Discard())
	s := New(fc, WithCache(c), WithBudget(budget), WithLogger(logger.Discard()))

	a := news.Article{Title: "same", Summary: "text"}
	for i := 0; i < 3; i++ {
		out, _ := s.Summarize(context.Background(), a, "p")
		if out != "cached answer" {
			t.Fatalf("call %d: got %q", i, out)
		}
	}
	if fc.calls() != 1 {
		t.Errorf("identical requests should hit the provider once, got %d", fc.calls())
	}

	other := news.Article{Title: "different", Summary: "fallback text"}
	out, _ := s.Summarize(context.Background(), other, "p")
	if out != "fallback text" || fc.calls() != 1 {
		t.Errorf("exhausted budget must skip the provider: out=%q calls=%d", out, fc.calls())
	}
}

type failingSummarizer struct{ Deterministic }

func (failingSummarizer) Summarize(context.Context, news.Article, string) (string, error) {
	return "", errors.New("nope")
}

func TestSummarizeArticles_ErrorKeepsOriginal(t *testing.T) {
	in := []news.Article{{Title: "a", Summary: "first"}, {Title: "b", Summary: "second"}}
	out := SummarizeArticles(context.Background(), failingSummarizer{}, in, "")
	if len(out) != 2 {
		t.Fatalf("every article must be emitted, got %d", len(out))
	}
	for i, s := range out {
		if s.SimplifiedSummary != in[i].Summary || s.OriginalSummary != in[i].Summary {
			t.Errorf("article %d: %+v", i, s)
		}
	}
}

func TestSanitizeAIText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Overall Summary: Today was busy.", "Today was busy."},
		{"(Note: machine generated) Real text.", "Real text."},
		{"[Note: check sources] Real text.", "Real text."},
		{"Note: disclaimer line\nReal text.", "Real text."},
		{"Line one.\n\nLine two.", "Line one. Line two."},
		{"\"Quoted answer.\"", "Quoted answer."},
	}
	for _, tt := range tests {
		if got := SanitizeAIText(tt.in); got != tt.want {
			t.Errorf("SanitizeAIText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
