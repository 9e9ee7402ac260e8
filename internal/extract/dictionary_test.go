package extract

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/corpus-engine/internal/document"
)

func testCorpus() *Corpus {
	return NewCorpusFromLists(map[List][]string{
		ListFirstNames:    {"john", "maria", "ford"},
		ListLastNames:     {"smith", "jones", "chen"},
		ListOrganizations: {"acme corporation", "osha", "globex"},
		ListSafetyTerms:   {"hard hat", "hard hats", "fall protection", "lockout"},
		ListChemicals:     {"benzene", "asbestos"},
		ListAgencies:      {"epa"},
		ListLocations:     {"denver"},
	})
}

func TestDictionaryRecognizer_FindsListEntities(t *testing.T) {
	r := NewDictionaryRecognizer(testCorpus())
	text := "Workers at Acme Corporation must wear hard hats when handling benzene."

	got := r.Recognize(text)

	require.Len(t, got[document.KindOrg], 1)
	assert.Equal(t, "Acme Corporation", got[document.KindOrg][0].Text)

	require.Len(t, got[document.KindSafetyTerm], 1)
	assert.Equal(t, "hard hats", got[document.KindSafetyTerm][0].Text)

	require.Len(t, got[document.KindChemical], 1)
	assert.Equal(t, "benzene", got[document.KindChemical][0].Text)
}

func TestDictionaryRecognizer_SpansAddressOriginalText(t *testing.T) {
	r := NewDictionaryRecognizer(testCorpus())
	text := "OSHA and the EPA inspected the site in Denver."

	got := r.Recognize(text)

	for kind, mentions := range got {
		for _, m := range mentions {
			assert.Equal(t, text[m.Span.Start:m.Span.End], m.Text,
				"span for %s/%s must address the original text", kind, m.Text)
		}
	}
	require.Len(t, got[document.KindOrg], 1)
	assert.Equal(t, "OSHA", got[document.KindOrg][0].Text)
}

func TestDictionaryRecognizer_WordBoundaries(t *testing.T) {
	r := NewDictionaryRecognizer(testCorpus())

	// "lockout" inside a longer word must not match.
	got := r.Recognize("The lockouts procedure and antilockout device.")
	assert.Empty(t, got[document.KindSafetyTerm])

	// Punctuation adjacency is a valid boundary.
	got = r.Recognize("Globex, per OSHA guidance.")
	require.Len(t, got[document.KindOrg], 2)

	// An apostrophe extends the word, so the possessive does not match.
	got = r.Recognize("OSHA's inspectors arrived.")
	assert.Empty(t, got[document.KindOrg])
}

func TestDictionaryRecognizer_NonASCIIWordBoundaries(t *testing.T) {
	r := NewDictionaryRecognizer(testCorpus())

	// Accented letters continue the word, so the embedded run must not match.
	got := r.Recognize("The éoshaé marker and the Müosha label.")
	assert.Empty(t, got[document.KindOrg])

	// Non-letter multibyte neighbors (em dash, quotes) remain valid boundaries.
	got = r.Recognize("Cited by OSHA—then fined. “Globex” appealed.")
	require.Len(t, got[document.KindOrg], 2)
}

func TestDictionaryRecognizer_InjectedTermsRecoveredExactly(t *testing.T) {
	terms := []string{"lockout", "tagout", "hard hats", "respirator"}
	r := NewDictionaryRecognizer(NewCorpusFromLists(map[List][]string{
		ListSafetyTerms: terms,
	}))

	// Filler tokens are built from consonants only, so no dictionary term
	// (every term contains a vowel) can appear except where injected.
	const filler = "bcdfgjkmpqvwxz"
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 100; trial++ {
		tokens := make([]string, 40)
		for i := range tokens {
			b := make([]byte, 3+rng.Intn(8))
			for j := range b {
				b[j] = filler[rng.Intn(len(filler))]
			}
			tokens[i] = string(b)
		}

		picked := rng.Perm(len(tokens))[:6]
		injected := make(map[int]bool, 5)
		for _, idx := range picked[:5] {
			tokens[idx] = terms[rng.Intn(len(terms))]
			injected[idx] = true
		}
		// A term glued inside a longer word must not be recovered.
		tokens[picked[5]] = "xq" + terms[rng.Intn(len(terms))] + "zz"

		want := make(map[document.Span]string, len(injected))
		offset := 0
		for i, tok := range tokens {
			if injected[i] {
				want[document.Span{Start: offset, End: offset + len(tok)}] = tok
			}
			offset += len(tok) + 1
		}

		text := strings.Join(tokens, " ")
		got := r.Recognize(text)[document.KindSafetyTerm]
		require.Len(t, got, len(want), "trial %d: %q", trial, text)
		for _, m := range got {
			require.Equal(t, want[m.Span], m.Text, "trial %d: span %v", trial, m.Span)
		}
	}
}

func TestDictionaryRecognizer_NameHits(t *testing.T) {
	r := NewDictionaryRecognizer(testCorpus())
	text := "John Smith met Maria Chen."

	hits := r.NameHits(text)
	require.Len(t, hits, 4)

	assert.Equal(t, "John", hits[0].Text)
	assert.True(t, hits[0].IsFirst)
	assert.False(t, hits[0].IsLast)

	assert.Equal(t, "Smith", hits[1].Text)
	assert.True(t, hits[1].IsLast)

	// Sorted by position.
	for i := 1; i < len(hits); i++ {
		assert.Greater(t, hits[i].Span.Start, hits[i-1].Span.Start)
	}
}

func TestAsciiLower_PreservesLength(t *testing.T) {
	in := "Héllo WORLD Ünit"
	out := asciiLower(in)
	assert.Equal(t, len(in), len(out), "multibyte runes must keep their byte width")
	assert.Equal(t, "héllo world Ünit", out)
}

func TestAutomaton_Empty(t *testing.T) {
	a := NewAutomaton(nil)
	assert.Empty(t, a.Find("anything at all"))
	assert.False(t, a.Contains("anything"))
	assert.Equal(t, 0, a.Size())
}
