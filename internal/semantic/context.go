package semantic

import (
	"strings"

	"github.com/corpusforge/corpus-engine/internal/document"
)

const snippetMax = 200

var markdownReplacer = strings.NewReplacer(
	"#", "",
	"*", "",
	"`", "",
	"|", " ",
	"\n", " ",
	"\t", " ",
)

// snippet extracts a cleaned context window of up to snippetMax characters
// around the span, aligned to sentence boundaries where possible and cut at
// word boundaries otherwise.
func snippet(text string, span document.Span) string {
	start := span.Start - snippetMax/2
	if start < 0 {
		start = 0
	}
	end := span.End + snippetMax/2
	if end > len(text) {
		end = len(text)
	}

	// Widen the left edge back to the previous sentence terminator.
	if start > 0 {
		if i := strings.LastIndexAny(text[:span.Start], ".!?\n"); i >= start-40 && i >= 0 {
			start = i + 1
		}
	}
	// Pull the right edge in to the next sentence terminator.
	if end < len(text) {
		if i := strings.IndexAny(text[span.End:], ".!?\n"); i >= 0 && span.End+i+1 <= end+40 {
			end = span.End + i + 1
		}
	}

	s := markdownReplacer.Replace(text[start:end])
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= snippetMax {
		return s
	}

	cut := snippetMax - 3
	if i := strings.LastIndexByte(s[:cut], ' '); i > 0 {
		cut = i
	}
	return s[:cut] + "..."
}

// capPhrase trims a phrase to at most n characters, cutting at a word
// boundary.
func capPhrase(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	if i := strings.LastIndexByte(s[:n], ' '); i > 0 {
		cut = i
	}
	return strings.TrimSpace(s[:cut])
}

// sentenceEnd returns the offset just past pos where the enclosing sentence
// terminates, or len(text) when no terminator follows.
func sentenceEnd(text string, pos int) int {
	if i := strings.IndexAny(text[pos:], ".!?\n"); i >= 0 {
		return pos + i
	}
	return len(text)
}
