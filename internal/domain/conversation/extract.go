package conversation

import (
	"regexp"
	"strings"
)

var (
	responsePattern = regexp.MustCompile(`(?is)<response>(.*?)</response>`)
	thinkingPattern = regexp.MustCompile(`(?is)<thinking>.*?(</thinking>|$)`)
	openResponse    = regexp.MustCompile(`(?i)<response>`)
)

// ExtractAnswer returns the public part of a model answer. <thinking>
// segments are removed first, then the first <response> segment wins; without
// one the remaining text is the answer. An unterminated <response> runs to the
// end of text.
func ExtractAnswer(text string) string {
	stripped := thinkingPattern.ReplaceAllString(text, "")
	if m := responsePattern.FindStringSubmatch(stripped); m != nil {
		return strings.TrimSpace(m[1])
	}

	if loc := openResponse.FindStringIndex(stripped); loc != nil {
		return strings.TrimSpace(stripped[loc[1]:])
	}
	return strings.TrimSpace(stripped)
}
