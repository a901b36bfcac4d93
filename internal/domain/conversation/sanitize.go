package conversation

import (
	"fmt"
	"html"
	"regexp"
)

// markerPattern matches the structural tags the prompt protocol relies on,
// opening or closing, in any case, with stray whitespace or attributes.
var markerPattern = regexp.MustCompile(`(?i)<\s*/?\s*(user_prompt|system|thinking|response)\b[^>]*>`)

// Neutralize escapes every structural marker in untrusted input so it can no
// longer close or open a prompt section.
func Neutralize(input string) string {
	return markerPattern.ReplaceAllStringFunc(input, html.EscapeString)
}

// UserTurn renders the user message for a mention.
func UserTurn(identity, text string) string {
	return fmt.Sprintf("<user_prompt>\nfrom @%s: %s\n</user_prompt>", Neutralize(identity), Neutralize(text))
}
