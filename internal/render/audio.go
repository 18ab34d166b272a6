package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/newsletter/internal/news"
)

// Synthesizer converts text to MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioRenderer narrates a newsletter through a Synthesizer.
type AudioRenderer struct {
	synth Synthesizer
	now   func() time.Time
}

func NewAudioRenderer(synth Synthesizer) *AudioRenderer {
	return &AudioRenderer{synth: synth, now: time.Now}
}

// RenderAudio writes the narrated newsletter to path.
func (r *AudioRenderer) RenderAudio(ctx context.Context, articles []news.SummarizedArticle, overallSummary, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	script := BuildScript(articles, overallSummary, r.now())
	audio, err := r.synth.Synthesize(ctx, script)
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

// BuildScript produces the narration read by the synthesizer.
func BuildScript(articles []news.SummarizedArticle, overallSummary string, day time.Time) string {
	lines := []string{
		"Welcome to your daily newsletter.",
		fmt.Sprintf("Today is %s.", day.Format(dateLayout)),
		fmt.Sprintf("We have %d stories for you today.", len(articles)),
	}

	if overallSummary != "" {
		lines = append(lines,
			"Here's a quick overview of today's top stories.",
			CleanForSpeech(overallSummary),
		)
	}
	lines = append(lines, "Now, let's dive into the details.")

	for i, a := range articles {
		lines = append(lines,
			fmt.Sprintf("Story number %d.", i+1),
			CleanForSpeech(orDefault(a.Title, "Untitled")),
			fmt.Sprintf("From %s.", orDefault(a.Source, "unknown source")),
			CleanForSpeech(a.DisplaySummary()),
		)
		if a.Link != "" {
			lines = append(lines, "You can find the full article link in your PDF newsletter.")
		}
		if i < len(articles)-1 {
			lines = append(lines, "Moving on to the next story.")
		}
	}

	lines = append(lines,
		"That concludes today's newsletter.",
		"Thank you for listening. Have a great day!",
	)

	var nonEmpty []string
	for _, l := range lines {
		if l != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// speechReplacements is applied pairwise, in order.
var speechReplacements = []string{
	"&", "and",
	"%", "percent",
	"$", "dollars",
	"#", "number",
	"@", "at",
	"+", "plus",
	"=", "equals",
	"<", "less than",
	">", "greater than",
	"|", ",",
	"/", " or ",
	"...", ".",
	"—", ", ",
	"–", ", ",
	`"`, "",
	"'", "",
	"\n", " ",
	"\t", " ",
}

// CleanForSpeech spells out symbols a TTS engine would stumble over.
func CleanForSpeech(text string) string {
	for i := 0; i < len(speechReplacements); i += 2 {
		text = strings.ReplaceAll(text, speechReplacements[i], speechReplacements[i+1])
	}
	return strings.Join(strings.Fields(text), " ")
}

// EstimateDuration guesses narration length in minutes at 150 words per minute.
func EstimateDuration(articles []news.SummarizedArticle) float64 {
	words := len(strings.Fields(BuildScript(articles, "", time.Now())))
	minutes := float64(words) / 150
	return float64(int(minutes*10+0.5)) / 10
}

// concatMP3 joins MP3 segments back to back.
func concatMP3(segments [][]byte) []byte {
	return bytes.Join(segments, nil)
}
