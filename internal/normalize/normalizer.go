// Package normalize collapses raw mentions into canonical entities. Grouping
// is by a per-kind normalization key; overlap reconciliation across kinds
// happens first so the mention-count totality holds exactly over the kept
// mentions.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/corpusforge/corpus-engine/internal/document"
)

// entityNamespace seeds deterministic per-document entity IDs.
var entityNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// orgSuffixes are trailing corporate designators stripped from ORG keys.
var orgSuffixes = []string{
	"incorporated", "corporation", "limited", "company", "holdings",
	"inc", "llc", "ltd", "corp", "co", "plc", "gmbh",
}

// personTitles and personSuffixes are stripped before computing the
// (first, last) person key.
var personTitles = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "professor": {},
	"rev": {}, "sen": {}, "senator": {}, "rep": {}, "gov": {},
	"governor": {}, "capt": {}, "captain": {}, "col": {}, "colonel": {},
	"gen": {}, "general": {}, "judge": {},
}

var personSuffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {}, "phd": {},
	"md": {}, "esq": {},
}

// kindPriority orders kinds for overlap ties: PERSON > ORG > LOCATION > other.
func kindPriority(kind document.EntityKind) int {
	switch kind {
	case document.KindPerson:
		return 3
	case document.KindOrg:
		return 2
	case document.KindLocation:
		return 1
	default:
		return 0
	}
}

// Result is the outcome of normalizing one document's raw entities.
type Result struct {
	Entities         []document.CanonicalEntity
	DroppedOverlaps  int
	ReductionPercent float64
}

// Normalizer groups mentions into canonical entities. Stateless and safe for
// concurrent use.
type Normalizer struct {
	units *UnitNormalizer
}

// New creates a normalizer.
func New() *Normalizer {
	return &Normalizer{units: NewUnitNormalizer()}
}

// Units exposes the unit normalizer for the semantic stage.
func (n *Normalizer) Units() *UnitNormalizer {
	return n.units
}

// Normalize reconciles cross-kind overlaps, groups the surviving mentions by
// normalization key, and emits canonical entities. Running it twice on the
// same input yields equal results.
func (n *Normalizer) Normalize(raw map[document.EntityKind][]document.Mention) Result {
	total := 0
	var all []document.Mention
	for _, mentions := range raw {
		total += len(mentions)
		all = append(all, mentions...)
	}
	if total == 0 {
		return Result{Entities: []document.CanonicalEntity{}}
	}

	kept, dropped := reconcileOverlaps(all)

	groups := make(map[string]*group)
	for _, m := range kept {
		key := n.groupKey(m)
		g, ok := groups[key]
		if !ok {
			g = &group{kind: m.Kind, key: key, variants: make(map[string]int)}
			groups[key] = g
		}
		g.mentions = append(g.mentions, m)
		g.variants[m.Text]++
	}

	entities := make([]document.CanonicalEntity, 0, len(groups))
	for _, g := range groups {
		entities = append(entities, n.emit(g))
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Kind != entities[j].Kind {
			return entities[i].Kind < entities[j].Kind
		}
		return entities[i].Spans[0].Start < entities[j].Spans[0].Start
	})

	return Result{
		Entities:         entities,
		DroppedOverlaps:  dropped,
		ReductionPercent: 1 - float64(len(entities))/float64(total),
	}
}

type group struct {
	kind     document.EntityKind
	key      string
	mentions []document.Mention
	variants map[string]int
}

// emit chooses the canonical surface (highest frequency, ties to the
// earliest span) and assembles the entity record.
func (n *Normalizer) emit(g *group) document.CanonicalEntity {
	type variant struct {
		text     string
		count    int
		earliest int
	}
	variants := make([]variant, 0, len(g.variants))
	for text, count := range g.variants {
		earliest := -1
		for _, m := range g.mentions {
			if m.Text == text && (earliest < 0 || m.Span.Start < earliest) {
				earliest = m.Span.Start
			}
		}
		variants = append(variants, variant{text: text, count: count, earliest: earliest})
	}
	sort.Slice(variants, func(i, j int) bool {
		if variants[i].count != variants[j].count {
			return variants[i].count > variants[j].count
		}
		return variants[i].earliest < variants[j].earliest
	})

	aliases := make([]string, 0, len(variants))
	for _, v := range variants {
		aliases = append(aliases, v.text)
	}

	spans := make([]document.Span, 0, len(g.mentions))
	for _, m := range g.mentions {
		spans = append(spans, m.Span)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	entity := document.CanonicalEntity{
		ID:        uuid.NewSHA1(entityNamespace, []byte(string(g.kind)+":"+g.key)).String(),
		Canonical: variants[0].text,
		Kind:      g.kind,
		Aliases:   aliases,
		Count:     len(g.mentions),
		Spans:     spans,
	}

	if g.kind == document.KindMeasurement {
		if value, unit, ok := n.units.ParseMeasurement(variants[0].text); ok {
			entity.Metadata = map[string]interface{}{
				"value":       value,
				"unit":        unit,
				"unit_family": string(n.units.Family(unit)),
			}
		}
	}
	return entity
}

// groupKey computes the per-kind normalization key.
func (n *Normalizer) groupKey(m document.Mention) string {
	switch m.Kind {
	case document.KindPerson:
		first, last := personKeyTokens(m.Text)
		return fmt.Sprintf("%s|%s|%s", m.Kind, first, last)
	case document.KindOrg:
		return fmt.Sprintf("%s|%s", m.Kind, stripOrgSuffixes(defaultKey(m.Text)))
	case document.KindMeasurement:
		if value, unit, ok := n.units.ParseMeasurement(m.Text); ok {
			return fmt.Sprintf("%s|%g|%s", m.Kind, value, unit)
		}
		return fmt.Sprintf("%s|%s", m.Kind, defaultKey(m.Text))
	default:
		return fmt.Sprintf("%s|%s", m.Kind, defaultKey(m.Text))
	}
}

// defaultKey casefolds, strips leading/trailing punctuation, and collapses
// whitespace runs.
func defaultKey(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,;:!?()[]{}\"'")
	}
	return strings.Join(fields, " ")
}

// stripOrgSuffixes removes trailing corporate designators from an already
// normalized key.
func stripOrgSuffixes(key string) string {
	fields := strings.Fields(key)
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		found := false
		for _, suffix := range orgSuffixes {
			if last == suffix {
				fields = fields[:len(fields)-1]
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return strings.Join(fields, " ")
}

// personKeyTokens strips titles and suffixes and returns the lowered first
// and last tokens. A single-token name keys on itself for both positions.
func personKeyTokens(text string) (string, string) {
	fields := strings.Fields(strings.ToLower(text))
	cleaned := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,")
		if _, isTitle := personTitles[f]; isTitle {
			continue
		}
		if _, isSuffix := personSuffixes[f]; isSuffix {
			continue
		}
		if f != "" {
			cleaned = append(cleaned, f)
		}
	}
	if len(cleaned) == 0 {
		return "", ""
	}
	return cleaned[0], cleaned[len(cleaned)-1]
}

// reconcileOverlaps resolves cross-kind span containment: the longer mention
// wins unless the shorter one carries context-filter evidence, in which case
// the longer is dropped. Equal spans resolve by kind priority.
func reconcileOverlaps(all []document.Mention) ([]document.Mention, int) {
	sort.Slice(all, func(i, j int) bool {
		if all[i].Span.Start != all[j].Span.Start {
			return all[i].Span.Start < all[j].Span.Start
		}
		if all[i].Span.End != all[j].Span.End {
			return all[i].Span.End > all[j].Span.End
		}
		return kindPriority(all[i].Kind) > kindPriority(all[j].Kind)
	})

	drop := make([]bool, len(all))
	for i := 0; i < len(all); i++ {
		if drop[i] {
			continue
		}
		for j := i + 1; j < len(all); j++ {
			if all[j].Span.Start >= all[i].Span.End {
				break
			}
			if drop[j] || all[i].Kind == all[j].Kind {
				continue
			}
			loser := resolveContainment(all[i], all[j])
			switch loser {
			case 0:
				drop[i] = true
			case 1:
				drop[j] = true
			}
			if drop[i] {
				break
			}
		}
	}

	kept := make([]document.Mention, 0, len(all))
	dropped := 0
	for i, m := range all {
		if drop[i] {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	return kept, dropped
}

// resolveContainment returns the index (0 or 1) of the losing mention, or -1
// when neither contains the other.
func resolveContainment(a, b document.Mention) int {
	switch {
	case a.Span == b.Span:
		if kindPriority(a.Kind) >= kindPriority(b.Kind) {
			return 1
		}
		return 0
	case a.Span.Contains(b.Span):
		if contextValidated(b) {
			return 0
		}
		return 1
	case b.Span.Contains(a.Span):
		if contextValidated(a) {
			return 1
		}
		return 0
	default:
		return -1
	}
}

// contextValidated reports whether the mention survived a contextual filter,
// which lets a shorter mention beat a containing longer one.
func contextValidated(m document.Mention) bool {
	return len(m.Evidence) > 0
}
