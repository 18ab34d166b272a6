package news

import (
	"sort"
	"strings"

	"github.com/deusflow/newsletter/internal/metrics"
)

// Article is a normalized feed entry.
type Article struct {
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	Link           string `json:"link"`
	ImageURL       string `json:"image_url"`
	Published      string `json:"published"`
	Source         string `json:"source"`
	RelevanceScore int    `json:"relevance_score"`

	// Content holds scraped full text when enrichment is enabled.
	Content string `json:"-"`
}

// SummarizedArticle is an Article plus its original and simplified summaries.
type SummarizedArticle struct {
	Article
	OriginalSummary   string `json:"original_summary"`
	SimplifiedSummary string `json:"simplified_summary"`
}

// DisplaySummary is the text shown to readers.
func (s SummarizedArticle) DisplaySummary() string {
	if s.SimplifiedSummary != "" {
		return s.SimplifiedSummary
	}
	return s.OriginalSummary
}

// Dedupe keeps the first article for every exact (case-sensitive) title.
func Dedupe(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]Article, 0, len(articles))
	for _, a := range articles {
		if _, dup := seen[a.Title]; dup {
			metrics.DuplicatesFiltered.Inc()
			continue
		}
		seen[a.Title] = struct{}{}
		unique = append(unique, a)
	}
	return unique
}

// Score computes topic relevance. Each topic word found anywhere in
// title+summary adds 3 when it also occurs in the title, 1 otherwise.
// Matching is a raw substring test, so "art" counts inside "start".
func Score(a Article, topics []string) int {
	text := strings.ToLower(a.Title + " " + a.Summary)
	title := strings.ToLower(a.Title)

	score := 0
	for _, topic := range topics {
		for _, word := range strings.Fields(strings.ToLower(strings.TrimSpace(topic))) {
			if !strings.Contains(text, word) {
				continue
			}
			if strings.Contains(title, word) {
				score += 3
			} else {
				score++
			}
		}
	}
	return score
}

// Rank dedupes, scores, stable-sorts by score descending and truncates to limit.
// The input slice is not modified.
func Rank(articles []Article, topics []string, limit int) []Article {
	ranked := Dedupe(articles)
	for i := range ranked {
		ranked[i].RelevanceScore = Score(ranked[i], topics)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	if limit < 0 {
		limit = 0
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ParseTopics splits a comma-joined topic string, dropping blanks.
func ParseTopics(s string) []string {
	var topics []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
