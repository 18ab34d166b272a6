package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	googleTTSURL  = "https://translate.google.com/translate_tts"
	maxChunkRunes = 100
)

// GoogleTTS calls the public Google Translate speech endpoint.
type GoogleTTS struct {
	client  *http.Client
	baseURL string
	lang    string
}

func NewGoogleTTS(lang string) *GoogleTTS {
	if lang == "" {
		lang = "en"
	}
	return &GoogleTTS{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: googleTTSURL,
		lang:    lang,
	}
}

// Synthesize requests one MP3 segment per chunk and concatenates them.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := splitChunks(text, maxChunkRunes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to synthesize")
	}

	segments := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		seg, err := g.fetch(ctx, chunk, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		segments = append(segments, seg)
	}
	return concatMP3(segments), nil
}

func (g *GoogleTTS) fetch(ctx context.Context, chunk string, idx, total int) ([]byte, error) {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", g.lang)
	params.Set("q", chunk)
	params.Set("idx", strconv.Itoa(idx))
	params.Set("total", strconv.Itoa(total))
	params.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TTS endpoint returned status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio segment")
	}
	return data, nil
}

// splitChunks breaks text on word boundaries into pieces of at most max runes.
// Words longer than max are hard-split.
func splitChunks(text string, max int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		r := []rune(word)
		for len(r) > max {
			flush()
			chunks = append(chunks, string(r[:max]))
			r = r[max:]
		}
		wl := len(r)
		if curLen > 0 && curLen+1+wl > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(string(r))
		curLen += wl
	}
	flush()
	return chunks
}
