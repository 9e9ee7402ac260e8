package extract

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/observability"
)

// Extractor runs the three recognizers over a document and merges their
// mentions. It is immutable after construction and shared by all workers.
type Extractor struct {
	dictionary *DictionaryRecognizer
	patterns   *PatternRecognizer
	person     *PersonRecognizer
	logger     *observability.Logger
}

// Config holds extractor construction inputs.
type Config struct {
	Corpus              *Corpus
	Catalog             Catalog
	PersonMinConfidence float64
}

// NewExtractor builds the recognizers. Pattern compilation failures abort
// construction.
func NewExtractor(cfg Config, logger *observability.Logger) (*Extractor, error) {
	patterns, err := NewPatternRecognizer(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	minConfidence := cfg.PersonMinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.7
	}
	return &Extractor{
		dictionary: NewDictionaryRecognizer(cfg.Corpus),
		patterns:   patterns,
		person:     NewPersonRecognizer(cfg.Corpus.Automaton(ListOrganizations), minConfidence),
		logger:     logger,
	}, nil
}

// Extract runs the dictionary and pattern recognizers in parallel, then the
// person recognizer over the dictionary's name hits. Mentions may overlap
// across recognizers; the normalizer reconciles them.
func (e *Extractor) Extract(ctx context.Context, text string) (map[document.EntityKind][]document.Mention, error) {
	var (
		dictMentions    map[document.EntityKind][]document.Mention
		patternMentions map[document.EntityKind][]document.Mention
		nameHits        []NameHit
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		dictMentions = e.dictionary.Recognize(text)
		nameHits = e.dictionary.NameHits(text)
		return nil
	})
	g.Go(func() error {
		patternMentions = e.patterns.Recognize(text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[document.EntityKind][]document.Mention, len(dictMentions)+len(patternMentions)+1)
	for kind, mentions := range dictMentions {
		merged[kind] = append(merged[kind], mentions...)
	}
	for kind, mentions := range patternMentions {
		merged[kind] = append(merged[kind], mentions...)
	}

	if persons := e.person.Recognize(text, nameHits); len(persons) > 0 {
		merged[document.KindPerson] = append(merged[document.KindPerson], persons...)
	}

	for kind := range merged {
		sortMentions(merged[kind])
	}
	return merged, nil
}
