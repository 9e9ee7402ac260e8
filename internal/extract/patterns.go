package extract

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corpusforge/corpus-engine/internal/document"
)

// PatternSpec declares one pattern in the catalog. The only supported flag is
// IGNORECASE; anything else fails pool construction.
type PatternSpec struct {
	Name  string   `yaml:"name"`
	Kind  string   `yaml:"kind"`
	Regex string   `yaml:"regex"`
	Flags []string `yaml:"flags,omitempty"`
}

// Catalog is the declarative pattern catalog.
type Catalog struct {
	Patterns []PatternSpec `yaml:"patterns"`
}

// LoadCatalog reads a pattern catalog from a YAML file.
func LoadCatalog(path string) (Catalog, error) {
	var cat Catalog
	data, err := os.ReadFile(path)
	if err != nil {
		return cat, fmt.Errorf("read pattern catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return cat, fmt.Errorf("parse pattern catalog: %w", err)
	}
	return cat, nil
}

// DefaultCatalog returns the built-in patterns for productive entity kinds.
// All patterns compile under RE2 semantics; lookaround is not available and
// boundary conditions are handled by post-filters instead.
func DefaultCatalog() Catalog {
	return Catalog{Patterns: []PatternSpec{
		{
			Name:  "money",
			Kind:  "MONEY",
			Regex: `\$[0-9][0-9,]*(\.[0-9]{1,2})?(\s?(million|billion|trillion|thousand))?`,
			Flags: []string{"IGNORECASE"},
		},
		{
			Name: "date",
			Kind: "DATE",
			Regex: `\b(january|february|march|april|may|june|july|august|september|october|november|december)` +
				`\s[0-9]{1,2}(,\s?[0-9]{4})?\b` +
				`|\b[0-9]{1,2}/[0-9]{1,2}/[0-9]{2,4}\b` +
				`|\b[0-9]{4}-[0-9]{2}-[0-9]{2}\b`,
			Flags: []string{"IGNORECASE"},
		},
		{
			Name:  "time",
			Kind:  "TIME",
			Regex: `\b([01]?[0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?(\s?(am|pm))?\b`,
			Flags: []string{"IGNORECASE"},
		},
		{
			Name:  "phone",
			Kind:  "PHONE",
			Regex: `(\+?1[-. ])?(\([0-9]{3}\)\s?|[0-9]{3}[-. ])[0-9]{3}[-. ][0-9]{4}\b`,
		},
		{
			Name:  "email",
			Kind:  "EMAIL",
			Regex: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		},
		{
			Name:  "url",
			Kind:  "URL",
			Regex: `\bhttps?://[^\s<>"')]+`,
		},
		{
			Name: "measurement",
			Kind: "MEASUREMENT",
			Regex: `\b[0-9]+(\.[0-9]+)?\s?(` +
				`feet|foot|ft|inches|inch|yards|yard|miles|mile|` +
				`millimeters|millimetres|centimeters|centimetres|kilometers|kilometres|meters|metres|meter|metre|mm|cm|km|` +
				`pounds|pound|lbs|lb|ounces|ounce|oz|tons|ton|kilograms|kilogram|grams|gram|kg|mg|` +
				`gallons|gallon|liters|litres|liter|litre|ml|` +
				`seconds|second|minutes|minute|hours|hour|days|day|weeks|week|years|year|` +
				`degrees|fahrenheit|celsius|decibels|decibel|dba|db|` +
				`psi|mph|kph|volts|volt|amps|amp|watts|watt` +
				`)\b`,
			Flags: []string{"IGNORECASE"},
		},
		{
			Name: "regulation",
			Kind: "REGULATION",
			Regex: `\b[0-9]{1,2}\s?CFR\s?(Part\s?)?[0-9]{1,4}(\.[0-9]+)?\b` +
				`|\bOSHA\s?[0-9]{3,4}(\.[0-9]+)?\b` +
				`|\bISO\s?[0-9]{3,5}(-[0-9]+)?\b` +
				`|\bANSI\s?[A-Z]?[0-9]+(\.[0-9]+)?\b`,
			Flags: []string{"IGNORECASE"},
		},
		{
			Name:  "percentage",
			Kind:  "PERCENTAGE",
			Regex: `\b[0-9]+(\.[0-9]+)?\s?(%|percent)`,
			Flags: []string{"IGNORECASE"},
		},
	}}
}

// compiledPattern is one catalog entry ready for matching.
type compiledPattern struct {
	name string
	kind document.EntityKind
	re   *regexp.Regexp
}

// PatternRecognizer matches the compiled catalog against document text. The
// engine is Go's RE2-style regexp: matching time is linear in text length per
// pattern and backtracking blowup cannot occur. Patterns that need lookaround
// do not compile and fail pool construction.
type PatternRecognizer struct {
	patterns []compiledPattern
}

// NewPatternRecognizer compiles the catalog. Any compile failure, unknown
// flag, or unknown kind aborts construction.
func NewPatternRecognizer(cat Catalog) (*PatternRecognizer, error) {
	compiled := make([]compiledPattern, 0, len(cat.Patterns))
	for _, spec := range cat.Patterns {
		expr := spec.Regex
		for _, flag := range spec.Flags {
			switch strings.ToUpper(flag) {
			case "IGNORECASE":
				expr = "(?i)" + expr
			default:
				return nil, fmt.Errorf("pattern %q: unsupported flag %q", spec.Name, flag)
			}
		}

		kind, err := document.ParseEntityKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", spec.Name, err)
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q does not compile to a finite automaton: %w", spec.Name, err)
		}

		compiled = append(compiled, compiledPattern{name: spec.Name, kind: kind, re: re})
	}
	return &PatternRecognizer{patterns: compiled}, nil
}

// Recognize scans the text once per pattern and reports spans with matched
// text. Overlaps across patterns are allowed; the normalizer reconciles them.
func (r *PatternRecognizer) Recognize(text string) map[document.EntityKind][]document.Mention {
	out := make(map[document.EntityKind][]document.Mention)
	for _, p := range r.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			out[p.kind] = append(out[p.kind], document.Mention{
				Span: document.Span{Start: loc[0], End: loc[1]},
				Text: text[loc[0]:loc[1]],
				Kind: p.kind,
			})
		}
	}
	for kind := range out {
		sortMentions(out[kind])
	}
	return out
}
