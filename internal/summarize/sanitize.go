package summarize

import (
	"regexp"
	"strings"
)

var (
	leadingLabelRe   = regexp.MustCompile(`(?i)^\s*(overall summary|executive summary|summary)\s*:\s*`)
	inlineNoteRe     = regexp.MustCompile(`(?is)\(\s*note\s*:[^)]*\)|\[\s*note\s*:[^\]]*\]`)
	fullLineNoteRe   = regexp.MustCompile(`(?i)^\s*note\s*:`)
	repeatedSpacesRe = regexp.MustCompile(`[ \t]{2,}`)
)

// SanitizeAIText removes labels and disclaimers that models like to add
// around the answer. Lines are joined with single spaces.
func SanitizeAIText(s string) string {
	s = inlineNoteRe.ReplaceAllString(s, "")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || fullLineNoteRe.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}

	out := strings.Join(lines, " ")
	out = leadingLabelRe.ReplaceAllString(out, "")
	out = repeatedSpacesRe.ReplaceAllString(out, " ")
	return strings.Trim(strings.TrimSpace(out), `"`)
}
