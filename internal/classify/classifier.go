// Package classify assigns domain and document-type scores by keyword
// density. Scoring is O(n) in tokens, needs no training data, and the raw
// scores feed the routing thresholds downstream; normalization to
// percentages is deferred to presentation.
package classify

import (
	"sort"
	"strings"

	"github.com/corpusforge/corpus-engine/internal/document"
)

// Thresholds gate the routing decisions on raw keyword scores.
type Thresholds struct {
	SkipExtractionBelow float64
	DeepExtractionAbove float64
	SpecializationAbove float64
}

// DefaultThresholds returns the standard routing thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SkipExtractionBelow: 5.0,
		DeepExtractionAbove: 60.0,
		SpecializationAbove: 40.0,
	}
}

// Classifier scores documents against fixed keyword sets.
type Classifier struct {
	domainSets  map[document.Domain]map[string]struct{}
	docTypeSets map[document.DocType]map[string]struct{}
	thresholds  Thresholds
}

// New creates a classifier with the built-in keyword sets.
func New(thresholds Thresholds) *Classifier {
	c := &Classifier{
		domainSets:  make(map[document.Domain]map[string]struct{}),
		docTypeSets: make(map[document.DocType]map[string]struct{}),
		thresholds:  thresholds,
	}
	for domain, words := range domainKeywords() {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		c.domainSets[domain] = set
	}
	for docType, words := range docTypeKeywords() {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		c.docTypeSets[docType] = set
	}
	return c
}

// Classify tokenizes the text once and produces the classification record.
func (c *Classifier) Classify(text string) *document.Classification {
	counts := tokenCounts(text)

	domains := make(map[document.Domain]float64, len(c.domainSets))
	for domain, set := range c.domainSets {
		domains[domain] = scoreSet(counts, set)
	}
	// The general bucket always scores 1 so the argmax is never undefined.
	domains[document.DomainGeneral] = 1

	docTypes := make(map[document.DocType]float64, len(c.docTypeSets))
	for docType, set := range c.docTypeSets {
		docTypes[docType] = scoreSet(counts, set)
	}
	docTypes[document.DocTypeGeneral] = 1

	primaryDomain, domainScore := argmaxDomain(domains)
	primaryDocType, docTypeScore := argmaxDocType(docTypes)

	route := string(document.DomainGeneral)
	if domainScore >= c.thresholds.SpecializationAbove {
		route = string(primaryDomain)
	}

	return &document.Classification{
		Domains:                  domains,
		DocTypes:                 docTypes,
		PrimaryDomain:            primaryDomain,
		PrimaryDomainConfidence:  domainScore,
		PrimaryDocType:           primaryDocType,
		PrimaryDocTypeConfidence: docTypeScore,
		Routing: document.RoutingDecision{
			SkipEntityExtraction: domainScore < c.thresholds.SkipExtractionBelow,
			DeepExtraction:       domainScore >= c.thresholds.DeepExtractionAbove,
			SpecializationRoute:  route,
		},
	}
}

// tokenCounts lowercases and whitespace-splits the text, counting token
// frequencies. No stemming.
func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if tok != "" {
			counts[tok]++
		}
	}
	return counts
}

// scoreSet computes the frequency-weighted keyword match sum.
func scoreSet(counts map[string]int, keywords map[string]struct{}) float64 {
	score := 0.0
	for word, n := range counts {
		if _, ok := keywords[word]; ok {
			score += float64(n)
		}
	}
	return score
}

// argmaxDomain picks the highest-scoring domain; ties resolve by name so
// classification is deterministic.
func argmaxDomain(scores map[document.Domain]float64) (document.Domain, float64) {
	names := make([]document.Domain, 0, len(scores))
	for d := range scores {
		names = append(names, d)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	best := names[0]
	for _, d := range names[1:] {
		if scores[d] > scores[best] {
			best = d
		}
	}
	return best, scores[best]
}

func argmaxDocType(scores map[document.DocType]float64) (document.DocType, float64) {
	names := make([]document.DocType, 0, len(scores))
	for t := range scores {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	best := names[0]
	for _, t := range names[1:] {
		if scores[t] > scores[best] {
			best = t
		}
	}
	return best, scores[best]
}
