package extract

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/corpusforge/corpus-engine/internal/document"
)

// DictionaryRecognizer finds word-list entities with one automaton scan per
// list over the lowercased document text.
type DictionaryRecognizer struct {
	corpus *Corpus
}

// NewDictionaryRecognizer creates a dictionary recognizer over a corpus.
func NewDictionaryRecognizer(corpus *Corpus) *DictionaryRecognizer {
	return &DictionaryRecognizer{corpus: corpus}
}

// Recognize scans the text against every entity-bearing list and returns
// word-boundary-filtered mentions keyed by kind.
func (r *DictionaryRecognizer) Recognize(text string) map[document.EntityKind][]document.Mention {
	lower := asciiLower(text)
	out := make(map[document.EntityKind][]document.Mention)

	for _, list := range AllLists() {
		kind, ok := listEntityKind(list)
		if !ok {
			continue
		}
		for _, hit := range r.corpus.Automaton(list).Find(lower) {
			if !wordBounded(lower, hit.Start, hit.End) {
				continue
			}
			out[kind] = append(out[kind], document.Mention{
				Span: document.Span{Start: hit.Start, End: hit.End},
				Text: text[hit.Start:hit.End],
				Kind: kind,
			})
		}
	}

	for kind := range out {
		sortMentions(out[kind])
	}
	return out
}

// NameHit is a first- or last-name dictionary occurrence, input to the
// person recognizer.
type NameHit struct {
	Span    document.Span
	Text    string
	IsFirst bool
	IsLast  bool
}

// NameHits returns the merged, position-sorted first- and last-name hits.
// A word present in both lists yields one hit flagged for both roles.
func (r *DictionaryRecognizer) NameHits(text string) []NameHit {
	lower := asciiLower(text)

	bySpan := make(map[document.Span]*NameHit)
	collect := func(list List, markFirst bool) {
		for _, hit := range r.corpus.Automaton(list).Find(lower) {
			if !wordBounded(lower, hit.Start, hit.End) {
				continue
			}
			span := document.Span{Start: hit.Start, End: hit.End}
			h, ok := bySpan[span]
			if !ok {
				h = &NameHit{Span: span, Text: text[hit.Start:hit.End]}
				bySpan[span] = h
			}
			if markFirst {
				h.IsFirst = true
			} else {
				h.IsLast = true
			}
		}
	}
	collect(ListFirstNames, true)
	collect(ListLastNames, false)

	hits := make([]NameHit, 0, len(bySpan))
	for _, h := range bySpan {
		hits = append(hits, *h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Span.Start != hits[j].Span.Start {
			return hits[i].Span.Start < hits[j].Span.Start
		}
		return hits[i].Span.End > hits[j].Span.End
	})
	return hits
}

// wordBounded keeps an occurrence [s,e) iff the neighboring runes are absent
// or not letters, digits, or an apostrophe. The boundary runes are decoded so
// a match embedded in a run of non-ASCII letters is rejected too.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// asciiLower lowercases A-Z only, leaving byte offsets identical to the
// original text so dictionary spans index the source Markdown directly.
func asciiLower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func sortMentions(mentions []document.Mention) {
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].Span.Start != mentions[j].Span.Start {
			return mentions[i].Span.Start < mentions[j].Span.Start
		}
		return mentions[i].Span.End < mentions[j].Span.End
	})
}
