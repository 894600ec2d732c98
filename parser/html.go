package parser

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	entityReplacer    = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&#039;", "'",
	)
)

// StripHTML turns simple description markup into plain text: tags are
// removed, whitespace runs collapse to one space, the common named entities
// are decoded, and the ends are trimmed. Numeric references other than
// &#039; are left as-is.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	text := tagPattern.ReplaceAllString(s, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = entityReplacer.Replace(text)
	return strings.TrimSpace(text)
}
