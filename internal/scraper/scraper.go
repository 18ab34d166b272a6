package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/news"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// minContentLength is the shortest scraped text worth handing to the summarizer.
const minContentLength = 100

// Extractor downloads article pages and pulls out their readable text.
type Extractor struct {
	client *http.Client
	log    logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Extract returns the paragraph text of the page at url.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}
	return extractText(doc), nil
}

func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var root *goquery.Selection
	for _, sel := range []string{"article", "main", "body"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			root = s
			break
		}
	}
	if root == nil {
		return ""
	}

	var paragraphs []string
	root.Find("p").Each(func(_ int, s *goquery.Selection) {
		paragraphs = append(paragraphs, s.Text())
	})
	return strings.Join(strings.Fields(strings.Join(paragraphs, " ")), " ")
}

// Enrich fills Content for the first max articles that have a link.
// Failures and thin pages are logged and leave the article untouched.
func (e *Extractor) Enrich(ctx context.Context, articles []news.Article, max int) []news.Article {
	out := make([]news.Article, len(articles))
	copy(out, articles)

	for i := range out {
		if i >= max {
			break
		}
		if out[i].Link == "" {
			continue
		}
		log := e.log.WithField("url", out[i].Link)

		content, err := e.Extract(ctx, out[i].Link)
		if err != nil {
			log.WithError(err).Warn("Can't get article content")
			continue
		}
		if len(content) < minContentLength {
			log.Debug("Article content too short")
			continue
		}
		out[i].Content = content
		log.Debugf("Got content (%d chars)", len(content))
	}
	return out
}
