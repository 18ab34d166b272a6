// Package app runs the newsletter flows: generation, delivery and the
// subscriber bookkeeping around them.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/delivery"
	"github.com/deusflow/newsletter/internal/metrics"
	"github.com/deusflow/newsletter/internal/news"
	"github.com/deusflow/newsletter/internal/newsletter"
	"github.com/deusflow/newsletter/internal/render"
	"github.com/deusflow/newsletter/internal/storage"
	"github.com/deusflow/newsletter/internal/summarize"
)

var (
	ErrNoArticles    = errors.New("no news articles found for topics")
	ErrNoPreferences = errors.New("no newsletter preferences saved")
	ErrNoChannels    = errors.New("no delivery channel selected")
)

var userMessages = map[error]string{
	ErrNoArticles:       "No news articles found for your topics. Try different keywords.",
	ErrNoPreferences:    "Please save your newsletter preferences first.",
	ErrNoChannels:       "Please select at least one delivery method.",
	storage.ErrNotFound: "Newsletter or recipient not found.",
}

// UserMessage turns an error from a Service call into the sentence shown
// to the person who triggered it.
func UserMessage(err error) string {
	if msg := newsletter.UserMessage(err); msg != "" {
		return msg
	}
	for target, msg := range userMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return "Error: " + err.Error()
}

const (
	PreviewLimit = 3

	titleDateLayout    = "January 02, 2006"
	artifactTimeLayout = "20060102_150405"
)

type NewsFetcher interface {
	FetchNews(ctx context.Context, topics []string, limit int) ([]news.Article, error)
}

// Enricher replaces feed summaries with full article text where it can.
type Enricher interface {
	Enrich(ctx context.Context, articles []news.Article, max int) []news.Article
}

type PDFRenderer interface {
	RenderPDF(ctx context.Context, articles []news.SummarizedArticle, overallSummary string, style newsletter.Style, path string) error
}

type AudioRenderer interface {
	RenderAudio(ctx context.Context, articles []news.SummarizedArticle, overallSummary, path string) error
}

// Deliverer is satisfied by *delivery.Dispatcher.
type Deliverer interface {
	SendToRecipient(ctx context.Context, n *newsletter.Newsletter, r *newsletter.Recipient) delivery.Result
	SendToAll(ctx context.Context, n *newsletter.Newsletter, recipients []newsletter.Recipient) delivery.Result
	SendSelected(ctx context.Context, n *newsletter.Newsletter, r *newsletter.Recipient, ch delivery.Channels) delivery.Result
}

// Deps are the collaborators of a Service. Enricher may be nil.
type Deps struct {
	Store      storage.Store
	Fetcher    NewsFetcher
	Enricher   Enricher
	Summarizer summarize.Summarizer
	PDF        PDFRenderer
	Audio      AudioRenderer
	Delivery   Deliverer
	Log        logrus.FieldLogger
}

type Options struct {
	NewsLimit      int
	ArtifactsDir   string
	ScrapeArticles int // 0 disables enrichment
}

// Report describes one generation run.
type Report struct {
	Newsletter   *newsletter.Newsletter `json:"newsletter"`
	Articles     int                    `json:"articles"`
	Recipients   int                    `json:"recipients"`
	AudioMinutes float64                `json:"audio_minutes"` // estimated narration length
	Delivery     delivery.Result        `json:"delivery"`
}

type Service struct {
	Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) *Service {
	if opts.NewsLimit <= 0 {
		opts.NewsLimit = 10
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Service{Deps: deps, opts: opts, now: time.Now}
}

// Generate builds one newsletter from the saved preferences and sends it
// to every active recipient.
func (s *Service) Generate(ctx context.Context) (*Report, error) {
	prefs, err := s.Store.GetPreferences(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoPreferences
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if len(prefs.TopicList()) == 0 {
		return nil, ErrNoPreferences
	}

	title := "Newsletter - " + s.now().Format(titleDateLayout)
	built, err := s.build(ctx, buildRequest{
		title:  title,
		topics: prefs.Topics,
		prompt: prefs.Prompt,
		style:  prefs.Style,
	})
	if err != nil {
		return nil, err
	}

	recipients, err := s.Store.ListActiveRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	res := s.Delivery.SendToAll(ctx, built.newsletter, recipients)
	s.Log.Infof("Newsletter %s sent to %d recipient(s), %d error(s)", built.newsletter.ID, len(recipients), len(res.Errors))

	return built.report(len(recipients), res), nil
}

// GenerateForRecipient builds a newsletter from one recipient's topics and
// style and sends it to that recipient only.
func (s *Service) GenerateForRecipient(ctx context.Context, recipientID string) (*Report, error) {
	r, err := s.Store.GetRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("recipient %s: %w", recipientID, err)
	}

	var prompt string
	prefs, err := s.Store.GetPreferences(ctx)
	switch {
	case err == nil:
		prompt = prefs.Prompt
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	title := fmt.Sprintf("Newsletter for %s - %s", r.Name, s.now().Format(titleDateLayout))
	built, err := s.build(ctx, buildRequest{
		title:  title,
		topics: r.Topics,
		prompt: prompt,
		style:  r.Style,
		tag:    r.ID,
	})
	if err != nil {
		return nil, err
	}

	res := s.Delivery.SendToRecipient(ctx, built.newsletter, r)
	return built.report(1, res), nil
}

// Send re-sends a stored newsletter to one recipient on the chosen channels.
func (s *Service) Send(ctx context.Context, newsletterID, recipientID string, ch delivery.Channels) (delivery.Result, error) {
	if !ch.Email && !ch.WhatsApp {
		return delivery.Result{}, ErrNoChannels
	}
	n, err := s.Store.GetNewsletter(ctx, newsletterID)
	if err != nil {
		return delivery.Result{}, fmt.Errorf("newsletter %s: %w", newsletterID, err)
	}
	r, err := s.Store.GetRecipient(ctx, recipientID)
	if err != nil {
		return delivery.Result{}, fmt.Errorf("recipient %s: %w", recipientID, err)
	}
	return s.Delivery.SendSelected(ctx, n, r, ch), nil
}

// Preview returns the top few articles for topics without rendering anything.
func (s *Service) Preview(ctx context.Context, topics []string) ([]news.Article, error) {
	articles, err := s.Fetcher.FetchNews(ctx, topics, PreviewLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	return articles, nil
}

// RecentNewsletters lists the latest generated newsletters, newest first.
func (s *Service) RecentNewsletters(ctx context.Context, limit int) ([]newsletter.Newsletter, error) {
	list, err := s.Store.ListNewsletters(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list newsletters: %w", err)
	}
	return list, nil
}

// Subscribe validates the form and creates or reactivates the recipient.
func (s *Service) Subscribe(ctx context.Context, in newsletter.SubscribeInput) (*newsletter.Recipient, bool, error) {
	norm, err := in.Normalize()
	if err != nil {
		return nil, false, err
	}
	r, created, err := s.Store.UpsertRecipient(ctx, norm)
	if err != nil {
		return nil, false, fmt.Errorf("save recipient: %w", err)
	}
	if created {
		s.Log.WithField("recipient", r.ID).Info("New subscriber")
	} else {
		s.Log.WithField("recipient", r.ID).Info("Subscriber updated")
	}
	return r, created, nil
}

func (s *Service) Unsubscribe(ctx context.Context, recipientID string) error {
	if err := s.Store.DeactivateRecipient(ctx, recipientID); err != nil {
		return fmt.Errorf("recipient %s: %w", recipientID, err)
	}
	return nil
}

// SavePreferences stores the shared topics, prompt and style.
func (s *Service) SavePreferences(ctx context.Context, p newsletter.Preferences) error {
	p.Topics = newsletter.Sanitize(strings.TrimSpace(p.Topics))
	p.Prompt = newsletter.Sanitize(strings.TrimSpace(p.Prompt))
	if len(p.TopicList()) == 0 {
		return newsletter.ErrInvalidTopics
	}
	p.Style = p.Style.WithDefaults()
	if err := s.Store.SavePreferences(ctx, p); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

type buildRequest struct {
	title  string
	topics string
	prompt string
	style  newsletter.Style
	tag    string // recipient ID in artifact names
}

type buildResult struct {
	newsletter   *newsletter.Newsletter
	articles     int
	audioMinutes float64
}

func (b *buildResult) report(recipients int, res delivery.Result) *Report {
	return &Report{
		Newsletter:   b.newsletter,
		Articles:     b.articles,
		Recipients:   recipients,
		AudioMinutes: b.audioMinutes,
		Delivery:     res,
	}
}

// build runs fetch, summarize and render, then persists the newsletter.
func (s *Service) build(ctx context.Context, req buildRequest) (*buildResult, error) {
	start := s.now()
	defer metrics.ObserveGeneration(start)

	res, err := s.buildArtifacts(ctx, req, start)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return nil, err
	}
	metrics.Global.SetLastRun()
	return res, nil
}

func (s *Service) buildArtifacts(ctx context.Context, req buildRequest, start time.Time) (*buildResult, error) {
	log := s.Log.WithField("topics", req.topics)

	articles, err := s.Fetcher.FetchNews(ctx, news.ParseTopics(req.topics), s.opts.NewsLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}
	log.Infof("Fetched %d articles", len(articles))

	if s.Enricher != nil && s.opts.ScrapeArticles > 0 {
		articles = s.Enricher.Enrich(ctx, articles, s.opts.ScrapeArticles)
	}

	summarized := summarize.SummarizeArticles(ctx, s.Summarizer, articles, req.prompt)
	overall := summarize.GenerateOverallSummary(ctx, s.Summarizer, summarized, req.prompt)

	pdfPath, audioPath := s.artifactPaths(req.tag, start)
	if err := os.MkdirAll(s.opts.ArtifactsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}

	if err := s.PDF.RenderPDF(ctx, summarized, overall, req.style.WithDefaults(), pdfPath); err != nil {
		removeArtifacts(pdfPath)
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	if err := s.Audio.RenderAudio(ctx, summarized, overall, audioPath); err != nil {
		removeArtifacts(pdfPath, audioPath)
		return nil, fmt.Errorf("render audio: %w", err)
	}

	n := &newsletter.Newsletter{
		Title:          req.title,
		Topics:         req.topics,
		OverallSummary: overall,
		PDFPath:        pdfPath,
		AudioPath:      audioPath,
	}
	if err := s.Store.CreateNewsletter(ctx, n); err != nil {
		removeArtifacts(pdfPath, audioPath)
		return nil, fmt.Errorf("save newsletter: %w", err)
	}

	log.WithField("newsletter", n.ID).Infof("Generated %q in %s", n.Title, s.now().Sub(start).Round(time.Millisecond))
	return &buildResult{
		newsletter:   n,
		articles:     len(summarized),
		audioMinutes: render.EstimateDuration(summarized),
	}, nil
}

// artifactPaths names files newsletter_[tag_]YYYYMMDD_HHMMSS.{pdf,mp3}.
func (s *Service) artifactPaths(tag string, at time.Time) (string, string) {
	base := "newsletter_"
	if tag != "" {
		base += tag + "_"
	}
	base += at.Format(artifactTimeLayout)
	return filepath.Join(s.opts.ArtifactsDir, base+".pdf"), filepath.Join(s.opts.ArtifactsDir, base+".mp3")
}

func removeArtifacts(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
