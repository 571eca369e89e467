package utils

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?>.*?</style>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
)

// SanitizeContent strips markup from server-supplied question content
// before it is handed to any renderer. Script and style bodies are
// removed entirely, remaining tags are dropped and entities unescaped.
func SanitizeContent(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
