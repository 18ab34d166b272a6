// Package feeds selects, downloads and normalizes RSS/Atom feeds per topic.
package feeds

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newsletter/internal/metrics"
	"github.com/deusflow/newsletter/internal/news"
)

const (
	maxItemsPerFeed  = 20
	maxSummaryLength = 500
	unknownSource    = "Unknown Source"
	PublishedLayout  = "January 02, 2006"
)

// Fetcher turns topics into ranked articles.
type Fetcher struct {
	catalog     *Catalog
	client      *http.Client
	concurrency int
	log         logrus.FieldLogger
	now         func() time.Time
}

type Option func(*Fetcher)

// WithHTTPClient replaces the client used for feed downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithConcurrency bounds how many feeds are downloaded at once.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithLogger sets the logger used for per-feed diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Fetcher) { f.log = l }
}

// NewFetcher returns a Fetcher reading the feeds listed in catalog.
func NewFetcher(catalog *Catalog, opts ...Option) *Fetcher {
	f := &Fetcher{
		catalog:     catalog,
		client:      &http.Client{Timeout: 10 * time.Second},
		concurrency: 4,
		log:         logrus.StandardLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchNews downloads every feed selected for topics and returns at most
// limit articles, deduplicated by title and ranked by relevance.
// Individual feed failures are logged and skipped.
func (f *Fetcher) FetchNews(ctx context.Context, topics []string, limit int) ([]news.Article, error) {
	if f.catalog == nil {
		return nil, errors.New("feeds: no catalog configured")
	}

	urls := f.catalog.SelectFeeds(topics)
	perFeed := make([][]news.Article, len(urls))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			articles, err := f.fetchFeed(ctx, u)
			if err != nil {
				metrics.FeedsFetched.WithLabelValues("error").Inc()
				f.log.WithFields(logrus.Fields{"feed": u, "error": err}).Warn("Error fetching feed")
				return nil
			}
			metrics.FeedsFetched.WithLabelValues("ok").Inc()
			f.log.WithField("feed", u).Debugf("Loaded %d articles", len(articles))
			perFeed[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	var all []news.Article
	ok := 0
	for _, items := range perFeed {
		if items != nil {
			ok++
		}
		all = append(all, items...)
	}
	metrics.ArticlesFetched.Add(float64(len(all)))
	f.log.Infof("Processed RSS feeds: %d/%d ok, %d articles", ok, len(urls), len(all))

	return news.Rank(all, topics, limit), nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) ([]news.Article, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client

	feed, err := parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = unknownSource
	}

	items := feed.Items
	if len(items) > maxItemsPerFeed {
		items = items[:maxItemsPerFeed]
	}
	articles := make([]news.Article, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		articles = append(articles, f.parseItem(item, source))
	}
	return articles, nil
}

func (f *Fetcher) parseItem(item *gofeed.Item, source string) news.Article {
	rawSummary := item.Description
	if rawSummary == "" {
		rawSummary = item.Content
	}

	return news.Article{
		Title:     item.Title,
		Summary:   truncateRunes(StripHTML(rawSummary), maxSummaryLength),
		Link:      item.Link,
		ImageURL:  extractImage(item, rawSummary),
		Published: f.published(item),
		Source:    source,
	}
}

func (f *Fetcher) published(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Format(PublishedLayout)
	case item.Published != "":
		return item.Published
	case item.Updated != "":
		return item.Updated
	default:
		return f.now().Format(PublishedLayout)
	}
}

// extractImage looks at media:content, media:thumbnail, image enclosures
// and finally the first <img> of the summary HTML.
func extractImage(item *gofeed.Item, summaryHTML string) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, c := range media["content"] {
			if c.Attrs["medium"] == "image" || strings.HasPrefix(c.Attrs["type"], "image") {
				return c.Attrs["url"]
			}
		}
		if thumbs := media["thumbnail"]; len(thumbs) > 0 {
			return thumbs[0].Attrs["url"]
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image") {
			return enc.URL
		}
	}

	if summaryHTML == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(summaryHTML))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return src
}

// StripHTML returns the text content of an HTML fragment with whitespace collapsed.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	text := s
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
