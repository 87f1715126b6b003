package search

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipElements are elements whose text never belongs in a snippet.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
}

// StripHTML reduces a fragment of HTML to its visible text. Plain text
// passes through untouched apart from whitespace normalization. Search
// backends sometimes hand back titles and snippets with embedded markup
// (highlight spans, stray entities); replies should never show it.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return cleanWhitespace(s)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	depth := 0 // nesting depth inside skipped elements

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF is the normal end; anything else means malformed
			// markup, in which case whatever text was collected wins.
			if err := tokenizer.Err(); err != io.EOF {
				return cleanWhitespace(b.String())
			}
			return cleanWhitespace(b.String())
		case html.StartTagToken:
			if t := tokenizer.Token(); skipElements[t.DataAtom] {
				depth++
			}
		case html.EndTagToken:
			if t := tokenizer.Token(); skipElements[t.DataAtom] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth == 0 {
				b.WriteString(tokenizer.Token().Data)
				b.WriteString(" ")
			}
		}
	}
}

// cleanWhitespace collapses runs of whitespace into single spaces.
func cleanWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
