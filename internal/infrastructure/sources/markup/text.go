package markup

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Text returns the visible text of an HTML fragment. Text nodes are trimmed
// and joined by a single space; entities are decoded.
func Text(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	parts := make([]string, 0, 16)
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; keep whatever was collected.
			return strings.Join(parts, " ")
		case html.StartTagToken:
			if isHiddenTag(tokenizer) {
				skip++
			}
		case html.EndTagToken:
			if skip > 0 && isHiddenTag(tokenizer) {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if chunk := strings.TrimSpace(string(tokenizer.Text())); chunk != "" {
				parts = append(parts, chunk)
			}
		}
	}
}

func isHiddenTag(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()
	switch string(name) {
	case "script", "style":
		return true
	default:
		return false
	}
}

// Truncate caps s at max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
