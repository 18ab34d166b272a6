package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deusflow/newsletter/internal/logger"
	"github.com/deusflow/newsletter/internal/news"
)

const page = `<html><head><script>var x = 1;</script></head><body>
<nav><p>Menu item</p></nav>
<article>
  <h1>Headline</h1>
  <p>First   paragraph of the story.</p>
  <aside><p>Related links</p></aside>
  <p>Second
  paragraph.</p>
</article>
<footer><p>Copyright</p></footer>
</body></html>`

func TestExtract_PrefersArticleAndDropsChrome(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	e := New(logger.Discard())
	text, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "First paragraph of the story. Second paragraph." {
		t.Errorf("unexpected text %q", text)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("expected browser user agent, got %q", gotUA)
	}
}

func TestExtract_FallsBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div><p>Only body text.</p></div></body></html>`)
	}))
	defer srv.Close()

	text, err := New(logger.Discard()).Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "Only body text." {
		t.Errorf("unexpected text %q", text)
	}
}

func TestExtract_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New(logger.Discard()).Extract(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestEnrich_RespectsMaxAndSkipsFailures(t *testing.T) {
	long := strings.Repeat("word ", 40)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprintf(w, "<article><p>%s</p></article>", long)
		case "/short":
			fmt.Fprint(w, "<article><p>tiny</p></article>")
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	in := []news.Article{
		{Title: "a", Link: srv.URL + "/ok"},
		{Title: "b", Link: srv.URL + "/short"},
		{Title: "c", Link: srv.URL + "/broken"},
		{Title: "d", Link: srv.URL + "/ok"},
	}
	out := New(logger.Discard()).Enrich(context.Background(), in, 3)

	if out[0].Content != strings.TrimSpace(long) {
		t.Errorf("expected content for first article, got %q", out[0].Content)
	}
	if out[1].Content != "" || out[2].Content != "" {
		t.Errorf("short or failing pages must stay empty: %+v", out[1:3])
	}
	if out[3].Content != "" {
		t.Error("articles beyond max must not be scraped")
	}
	if in[0].Content != "" {
		t.Error("input slice was mutated")
	}
}
