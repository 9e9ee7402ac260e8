// Package extract implements the entity recognition subsystem: dictionary
// matching over Aho-Corasick automata, a linear-time pattern recognizer, and
// the contextual person recognizer built on top of both.
package extract

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ahocorasick "github.com/BobuSumisu/aho-corasick"

	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/observability"
)

// List names a word-list file in the corpus directory.
type List string

// Word lists consumed at pool construction. One UTF-8 file per list, one
// lowercase entry per line.
const (
	ListFirstNames    List = "first_names"
	ListLastNames     List = "last_names"
	ListOrganizations List = "organizations"
	ListSafetyTerms   List = "safety_terms"
	ListChemicals     List = "chemicals"
	ListAgencies      List = "agencies"
	ListLocations     List = "locations"
)

// AllLists returns every known list name.
func AllLists() []List {
	return []List{
		ListFirstNames, ListLastNames, ListOrganizations,
		ListSafetyTerms, ListChemicals, ListAgencies, ListLocations,
	}
}

// listEntityKind maps a list to the entity kind its matches carry. Name lists
// feed the person recognizer and produce no direct mentions.
func listEntityKind(l List) (document.EntityKind, bool) {
	switch l {
	case ListOrganizations:
		return document.KindOrg, true
	case ListSafetyTerms:
		return document.KindSafetyTerm, true
	case ListChemicals:
		return document.KindChemical, true
	case ListAgencies:
		return document.KindAgency, true
	case ListLocations:
		return document.KindLocation, true
	}
	return "", false
}

// Hit is a raw automaton occurrence in lowercased text.
type Hit struct {
	Start int
	End   int
	Word  string
}

// Automaton wraps an Aho-Corasick trie over one word list. Immutable after
// construction and safe for concurrent reads.
type Automaton struct {
	trie    *ahocorasick.Trie
	members map[string]struct{}
}

// NewAutomaton builds an automaton from a word list. Entries are lowercased;
// blank entries are dropped.
func NewAutomaton(words []string) *Automaton {
	members := make(map[string]struct{}, len(words))
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, seen := members[w]; seen {
			continue
		}
		members[w] = struct{}{}
		cleaned = append(cleaned, w)
	}

	a := &Automaton{members: members}
	if len(cleaned) > 0 {
		a.trie = ahocorasick.NewTrieBuilder().AddStrings(cleaned).Build()
	}
	return a
}

// Find reports every occurrence of every word in the lowercased text. Cost is
// linear in text length plus matches, independent of dictionary size.
func (a *Automaton) Find(lowerText string) []Hit {
	if a.trie == nil {
		return nil
	}
	matches := a.trie.MatchString(lowerText)
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		start := int(m.Pos())
		word := m.MatchString()
		hits = append(hits, Hit{Start: start, End: start + len(word), Word: word})
	}
	return hits
}

// Contains reports exact membership of a lowercase word.
func (a *Automaton) Contains(word string) bool {
	_, ok := a.members[strings.ToLower(word)]
	return ok
}

// Size returns the number of entries.
func (a *Automaton) Size() int {
	return len(a.members)
}

// Corpus is the immutable, process-wide set of automata, built once at pool
// start and shared read-only by all workers.
type Corpus struct {
	automata map[List]*Automaton
}

// LoadCorpus reads every word-list file under dir. A missing file yields an
// empty list with a warning; an unreadable file aborts construction.
func LoadCorpus(dir string, logger *observability.Logger) (*Corpus, error) {
	automata := make(map[List]*Automaton, len(AllLists()))
	for _, list := range AllLists() {
		path := filepath.Join(dir, string(list)+".txt")
		words, err := readWordList(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn().Str("list", string(list)).Str("path", path).
					Msg("word list missing, treating as empty")
				automata[list] = NewAutomaton(nil)
				continue
			}
			return nil, fmt.Errorf("read word list %s: %w", path, err)
		}
		automata[list] = NewAutomaton(words)
		logger.Debug().Str("list", string(list)).Int("entries", automata[list].Size()).
			Msg("loaded word list")
	}
	return &Corpus{automata: automata}, nil
}

// NewCorpusFromLists builds a corpus from in-memory word lists.
func NewCorpusFromLists(lists map[List][]string) *Corpus {
	automata := make(map[List]*Automaton, len(AllLists()))
	for _, list := range AllLists() {
		automata[list] = NewAutomaton(lists[list])
	}
	return &Corpus{automata: automata}
}

// Automaton returns the automaton for a list. Always non-nil.
func (c *Corpus) Automaton(l List) *Automaton {
	return c.automata[l]
}

// readWordList reads one entry per line, skipping blank lines.
func readWordList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			words = append(words, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
