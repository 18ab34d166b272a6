package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/newsletter/internal/delivery"
	"github.com/deusflow/newsletter/internal/logger"
	"github.com/deusflow/newsletter/internal/news"
	"github.com/deusflow/newsletter/internal/newsletter"
	"github.com/deusflow/newsletter/internal/storage"
	"github.com/deusflow/newsletter/internal/summarize"
)

type fakeFetcher struct {
	articles []news.Article
	topics   []string
	limit    int
}

func (f *fakeFetcher) FetchNews(_ context.Context, topics []string, limit int) ([]news.Article, error) {
	f.topics, f.limit = topics, limit
	if len(f.articles) > limit {
		return f.articles[:limit], nil
	}
	return f.articles, nil
}

type fakeRenderer struct {
	pdfErr   error
	audioErr error
	style    newsletter.Style
}

func (f *fakeRenderer) RenderPDF(_ context.Context, _ []news.SummarizedArticle, _ string, style newsletter.Style, path string) error {
	f.style = style
	if err := os.WriteFile(path, []byte("%PDF-"), 0o644); err != nil {
		return err
	}
	return f.pdfErr
}

func (f *fakeRenderer) RenderAudio(_ context.Context, _ []news.SummarizedArticle, _ string, path string) error {
	if err := os.WriteFile(path, []byte("ID3"), 0o644); err != nil {
		return err
	}
	return f.audioErr
}

type fakeDelivery struct {
	sentAll  []newsletter.Recipient
	sentTo   *newsletter.Recipient
	selected delivery.Channels
}

func (f *fakeDelivery) SendToRecipient(_ context.Context, _ *newsletter.Newsletter, r *newsletter.Recipient) delivery.Result {
	f.sentTo = r
	return delivery.Result{Successes: []string{delivery.ChannelWhatsApp}}
}

func (f *fakeDelivery) SendToAll(_ context.Context, _ *newsletter.Newsletter, rs []newsletter.Recipient) delivery.Result {
	f.sentAll = rs
	return delivery.Result{Successes: []string{delivery.ChannelEmail}}
}

func (f *fakeDelivery) SendSelected(_ context.Context, _ *newsletter.Newsletter, r *newsletter.Recipient, ch delivery.Channels) delivery.Result {
	f.sentTo, f.selected = r, ch
	return delivery.Result{}
}

type fixture struct {
	svc      *Service
	store    *storage.FileStore
	fetcher  *fakeFetcher
	renderer *fakeRenderer
	delivery *fakeDelivery
	dir      string
}

func newFixture(t *testing.T, articles ...news.Article) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	f := &fixture{
		store:    store,
		fetcher:  &fakeFetcher{articles: articles},
		renderer: &fakeRenderer{},
		delivery: &fakeDelivery{},
		dir:      filepath.Join(dir, "artifacts"),
	}
	f.svc = New(Deps{
		Store:      store,
		Fetcher:    f.fetcher,
		Summarizer: summarize.Deterministic{},
		PDF:        f.renderer,
		Audio:      f.renderer,
		Delivery:   f.delivery,
		Log:        logger.Discard(),
	}, Options{NewsLimit: 10, ArtifactsDir: f.dir})
	f.svc.now = func() time.Time { return time.Date(2025, 4, 7, 8, 30, 0, 0, time.UTC) }
	return f
}

func sampleArticles() []news.Article {
	return []news.Article{
		{Title: "Chips get faster", Summary: "A short summary.", Link: "https://example.com/1"},
		{Title: "Markets rally", Summary: "Another summary.", Link: "https://example.com/2"},
	}
}

func subscribe(t *testing.T, f *fixture, email string) *newsletter.Recipient {
	t.Helper()
	r, _, err := f.svc.Subscribe(context.Background(), newsletter.SubscribeInput{
		Name: "Test User", Email: email, WhatsApp: "+12345678901", Topics: "technology",
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return r
}

func TestGenerate_RequiresPreferences(t *testing.T) {
	f := newFixture(t, sampleArticles()...)
	if _, err := f.svc.Generate(context.Background()); !errors.Is(err, ErrNoPreferences) {
		t.Fatalf("expected ErrNoPreferences, got %v", err)
	}
}

func TestGenerate_SendsToActiveRecipients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleArticles()...)

	if err := f.svc.SavePreferences(ctx, newsletter.Preferences{Topics: "technology, business"}); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}
	active := subscribe(t, f, "a@example.com")
	gone := subscribe(t, f, "b@example.com")
	if err := f.svc.Unsubscribe(ctx, gone.ID); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	rep, err := f.svc.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	n := rep.Newsletter
	if n.Title != "Newsletter - April 07, 2025" {
		t.Errorf("title = %q", n.Title)
	}
	if want := filepath.Join(f.dir, "newsletter_20250407_083000.pdf"); n.PDFPath != want {
		t.Errorf("pdf path = %q, want %q", n.PDFPath, want)
	}
	if !strings.HasSuffix(n.AudioPath, "newsletter_20250407_083000.mp3") {
		t.Errorf("audio path = %q", n.AudioPath)
	}
	if !strings.HasPrefix(n.OverallSummary, "Today's newsletter covers 2 stories") {
		t.Errorf("overall = %q", n.OverallSummary)
	}
	if rep.Articles != 2 || rep.Recipients != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(f.delivery.sentAll) != 1 || f.delivery.sentAll[0].ID != active.ID {
		t.Errorf("expected delivery to the active recipient only, got %+v", f.delivery.sentAll)
	}
	if got := f.fetcher.topics; len(got) != 2 || got[1] != "business" {
		t.Errorf("topics passed to fetcher = %v", got)
	}

	stored, err := f.store.GetNewsletter(ctx, n.ID)
	if err != nil || stored.Title != n.Title {
		t.Errorf("newsletter not persisted: %+v, %v", stored, err)
	}
}

func TestGenerate_NoArticles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_ = f.svc.SavePreferences(ctx, newsletter.Preferences{Topics: "nothing"})

	if _, err := f.svc.Generate(ctx); !errors.Is(err, ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
	if entries, _ := os.ReadDir(f.dir); len(entries) != 0 {
		t.Errorf("no artifacts expected, found %d", len(entries))
	}
	if list, _ := f.store.ListNewsletters(ctx, 0); len(list) != 0 {
		t.Errorf("nothing should be persisted, got %d", len(list))
	}
}

func TestGenerate_RenderFailureRemovesArtifacts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleArticles()...)
	f.renderer.audioErr = errors.New("tts down")
	_ = f.svc.SavePreferences(ctx, newsletter.Preferences{Topics: "technology"})

	if _, err := f.svc.Generate(ctx); err == nil || !strings.Contains(err.Error(), "tts down") {
		t.Fatalf("expected render error, got %v", err)
	}
	if entries, _ := os.ReadDir(f.dir); len(entries) != 0 {
		t.Errorf("partial artifacts left behind: %d", len(entries))
	}
}

func TestGenerateForRecipient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleArticles()...)

	r, _, err := f.svc.Subscribe(ctx, newsletter.SubscribeInput{
		Name: "Ana", Email: "ana@example.com", WhatsApp: "+4512345678",
		Topics: "science", Style: newsletter.Style{FontStyle: "classic"},
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	rep, err := f.svc.GenerateForRecipient(ctx, r.ID)
	if err != nil {
		t.Fatalf("GenerateForRecipient: %v", err)
	}
	if rep.Newsletter.Title != "Newsletter for Ana - April 07, 2025" {
		t.Errorf("title = %q", rep.Newsletter.Title)
	}
	if !strings.Contains(rep.Newsletter.PDFPath, "newsletter_"+r.ID+"_20250407_083000") {
		t.Errorf("pdf path not tagged: %q", rep.Newsletter.PDFPath)
	}
	if f.renderer.style.FontStyle != "classic" {
		t.Errorf("recipient style not used: %+v", f.renderer.style)
	}
	if f.delivery.sentTo == nil || f.delivery.sentTo.ID != r.ID {
		t.Errorf("expected delivery to %s", r.ID)
	}

	if _, err := f.svc.GenerateForRecipient(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSend_SelectedChannels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := subscribe(t, f, "c@example.com")
	n := &newsletter.Newsletter{Title: "t", Topics: "x"}
	if err := f.store.CreateNewsletter(ctx, n); err != nil {
		t.Fatalf("CreateNewsletter: %v", err)
	}

	ch := delivery.Channels{WhatsApp: true}
	if _, err := f.svc.Send(ctx, n.ID, r.ID, ch); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if f.delivery.selected != ch {
		t.Errorf("channels = %+v", f.delivery.selected)
	}
	if _, err := f.svc.Send(ctx, "nope", r.ID, ch); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPreview_UsesSmallLimit(t *testing.T) {
	arts := append(sampleArticles(), news.Article{Title: "c"}, news.Article{Title: "d"})
	f := newFixture(t, arts...)

	got, err := f.svc.Preview(context.Background(), []string{"technology"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if f.fetcher.limit != PreviewLimit || len(got) != PreviewLimit {
		t.Errorf("limit=%d len=%d", f.fetcher.limit, len(got))
	}
}

func TestSubscribe_ValidatesAndReactivates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.Subscribe(ctx, newsletter.SubscribeInput{Name: "X", Email: "x@example.com", WhatsApp: "+12345678901", Topics: "a"})
	if !errors.Is(err, newsletter.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	first := subscribe(t, f, "Mixed@Example.com")
	if first.Email != "mixed@example.com" {
		t.Errorf("email not lower-cased: %q", first.Email)
	}
	_ = f.svc.Unsubscribe(ctx, first.ID)

	again, created, err := f.svc.Subscribe(ctx, newsletter.SubscribeInput{
		Name: "Test User", Email: "mixed@example.com", WhatsApp: "+12345678901", Topics: "sports",
	})
	if err != nil || created || again.ID != first.ID || !again.IsActive {
		t.Errorf("expected reactivation, got %+v created=%v err=%v", again, created, err)
	}
}

func TestSavePreferences_RequiresTopics(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SavePreferences(context.Background(), newsletter.Preferences{Topics: " , "})
	if !errors.Is(err, newsletter.ErrInvalidTopics) {
		t.Fatalf("expected ErrInvalidTopics, got %v", err)
	}
}

func TestRecentNewsletters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, sampleArticles()...)
	_ = f.svc.SavePreferences(ctx, newsletter.Preferences{Topics: "technology"})

	rep, err := f.svc.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.AudioMinutes <= 0 {
		t.Errorf("expected an audio length estimate, got %v", rep.AudioMinutes)
	}

	list, err := f.svc.RecentNewsletters(ctx, 10)
	if err != nil {
		t.Fatalf("RecentNewsletters: %v", err)
	}
	if len(list) != 1 || list[0].ID != rep.Newsletter.ID {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestSend_RequiresChannel(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Send(context.Background(), "n", "r", delivery.Channels{})
	if !errors.Is(err, ErrNoChannels) {
		t.Fatalf("expected ErrNoChannels, got %v", err)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNoArticles, "No news articles found for your topics. Try different keywords."},
		{fmt.Errorf("recipient x: %w", storage.ErrNotFound), "Newsletter or recipient not found."},
		{newsletter.ErrInvalidEmail, "Please enter a valid email address."},
		{errors.New("smtp down"), "Error: smtp down"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
