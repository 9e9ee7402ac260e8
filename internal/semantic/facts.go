package semantic

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/normalize"
	"github.com/corpusforge/corpus-engine/internal/observability"
)

// maxFacts caps the fact list per document, keeping the highest-confidence
// facts.
const maxFacts = 25

const (
	baseConfidence      = 0.6
	strongModalBoost    = 0.2
	citationBoost       = 0.15
	numericBoost        = 0.1
	contextBoost        = 0.1
	categoryBoost       = 0.05
	quantMoneyThreshold = 1_000_000
	coOccurrenceWindow  = 200
)

var (
	modalRe = regexp.MustCompile(`(?i)\b(must|shall|required to|requires?|obligated to|should)\b`)
	roleRe  = regexp.MustCompile(`(?i)\b(employees?|workers?|employers?|contractors?|personnel|operators?|supervisors?|staff)\b`)

	penaltyRe   = regexp.MustCompile(`(?i)\b(?:fines?|fined|penalt(?:y|ies)|citations?|sanctions?)\b`)
	moneyRe     = regexp.MustCompile(`\$[0-9][0-9,]*(?:\.[0-9]+)?(?:\s?(?:thousand|million|billion))?`)
	citationRe  = regexp.MustCompile(`(?i)\b(?:\d+\s+CFR\s+[\d.]+|OSHA\b|ISO\s?\d+|ANSI\b|EPA\b)`)
	numericRe   = regexp.MustCompile(`[0-9]`)
	qualifierRe = regexp.MustCompile(`(?i)\b(must be|shall be|minimum(?: of)?|maximum(?: of)?|at least|no (?:more|less) than|not exceed(?:ing)?|up to)\s*$`)
	actionRe    = regexp.MustCompile(`^\s+(provides|delivers|requires|trains)\b`)
	headcountRe = regexp.MustCompile(`(?i)\b[0-9][0-9,]*\s+employees\b`)
)

// strongModals qualify for the higher evidence boost; "should" is advisory
// and does not.
var strongModals = map[string]struct{}{
	"must": {}, "shall": {}, "required to": {},
	"require": {}, "requires": {}, "obligated to": {},
}

// Analyzer derives facts from the extracted mentions and the matched text
// windows around them.
type Analyzer struct {
	units  *normalize.UnitNormalizer
	logger *observability.Logger
}

// New creates a semantic analyzer sharing the pipeline's unit normalizer.
func New(units *normalize.UnitNormalizer, logger *observability.Logger) *Analyzer {
	if units == nil {
		units = normalize.NewUnitNormalizer()
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Analyzer{units: units, logger: logger}
}

// Analyze runs every generator whose required entity kinds are present and
// returns the deduplicated, capped fact list ordered by position in the text.
func (a *Analyzer) Analyze(doc *document.Document) []document.Fact {
	text := doc.Markdown
	if strings.TrimSpace(text) == "" {
		return nil
	}

	regulatory := false
	if doc.Classification != nil {
		switch doc.Classification.PrimaryDomain {
		case document.DomainSafety, document.DomainRegulatory:
			regulatory = true
		}
	}

	var facts []document.Fact
	facts = append(facts, a.requirements(text, regulatory)...)
	facts = append(facts, a.compliance(text, doc.RawEntities[document.KindRegulation], regulatory)...)
	facts = append(facts, a.measurements(text, doc.RawEntities[document.KindMeasurement], regulatory)...)
	facts = append(facts, a.orgActions(text, doc.RawEntities[document.KindOrg])...)
	facts = append(facts, a.quantitative(text, doc.RawEntities[document.KindMoney], doc.RawEntities[document.KindOrg])...)

	facts = dedupe(facts)
	facts = suppressNearDuplicates(facts)

	if len(facts) > maxFacts {
		sort.SliceStable(facts, func(i, j int) bool { return facts[i].Confidence > facts[j].Confidence })
		facts = facts[:maxFacts]
	}
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].Span.Start < facts[j].Span.Start })
	return facts
}

type evidence struct {
	strongModal bool
	citation    bool
	numeric     bool
	category    bool
}

func (a *Analyzer) score(ctx string, ev evidence) float64 {
	c := baseConfidence
	if ev.strongModal {
		c += strongModalBoost
	}
	if ev.citation {
		c += citationBoost
	}
	if ev.numeric {
		c += numericBoost
	}
	if len(ctx) >= 20 {
		c += contextBoost
	}
	if ev.category {
		c += categoryBoost
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// requirements emits (role, MUST_COMPLY_WITH, obligation) facts where a modal
// verb has a stakeholder role nearby.
func (a *Analyzer) requirements(text string, regulatory bool) []document.Fact {
	var facts []document.Fact
	for _, loc := range modalRe.FindAllStringIndex(text, -1) {
		modal := strings.ToLower(text[loc[0]:loc[1]])

		winStart := loc[0] - 80
		if winStart < 0 {
			winStart = 0
		}
		winEnd := loc[1] + 80
		if winEnd > len(text) {
			winEnd = len(text)
		}
		role := roleRe.FindString(text[winStart:winEnd])
		if role == "" {
			continue
		}

		end := sentenceEnd(text, loc[1])
		object := capPhrase(text[loc[1]:end], 150)
		if len(object) < 3 {
			continue
		}

		span := document.Span{Start: loc[0], End: loc[1] + len(object)}
		ctx := snippet(text, span)
		_, strong := strongModals[modal]
		facts = append(facts, document.Fact{
			Subject:   capitalize(strings.ToLower(role)),
			Predicate: PredicateMustComplyWith,
			Object:    object,
			Confidence: a.score(ctx, evidence{
				strongModal: strong,
				citation:    citationRe.MatchString(ctx),
				numeric:     numericRe.MatchString(object),
				category:    regulatory,
			}),
			Kind:       document.FactRequirement,
			Span:       span,
			Context:    ctx,
			Actionable: true,
		})
	}
	return facts
}

// compliance emits (violation of <citation>, RESULTS_IN, penalty) facts
// where a regulation citation co-occurs with a penalty phrase and an amount.
func (a *Analyzer) compliance(text string, regs []document.Mention, regulatory bool) []document.Fact {
	var facts []document.Fact
	for _, reg := range regs {
		winEnd := reg.Span.End + coOccurrenceWindow
		if winEnd > len(text) {
			winEnd = len(text)
		}
		window := text[reg.Span.End:winEnd]

		penLoc := penaltyRe.FindStringIndex(window)
		if penLoc == nil {
			continue
		}
		amtLoc := moneyRe.FindStringIndex(window)
		if amtLoc == nil || amtLoc[1] < penLoc[0] {
			continue
		}

		object := capPhrase(window[penLoc[0]:amtLoc[1]], 150)
		span := document.Span{Start: reg.Span.Start, End: reg.Span.End + amtLoc[1]}
		ctx := snippet(text, span)
		facts = append(facts, document.Fact{
			Subject:   "Violation of " + reg.Text,
			Predicate: PredicateResultsIn,
			Object:    object,
			Confidence: a.score(ctx, evidence{
				citation: true,
				numeric:  true,
				category: regulatory,
			}),
			Kind:       document.FactCompliance,
			Span:       span,
			Context:    ctx,
			Actionable: true,
		})
	}
	return facts
}

// measurements emits (<Family> Requirement, HAS_VALUE, measurement) facts
// for measurements preceded by a requirement qualifier.
func (a *Analyzer) measurements(text string, ms []document.Mention, regulatory bool) []document.Fact {
	var facts []document.Fact
	for _, m := range ms {
		before := m.Span.Start - 35
		if before < 0 {
			before = 0
		}
		qLoc := qualifierRe.FindStringIndex(text[before:m.Span.Start])
		if qLoc == nil {
			continue
		}

		_, unit, ok := a.units.ParseMeasurement(m.Text)
		if !ok {
			continue
		}
		family := a.units.Family(unit)

		span := document.Span{Start: before + qLoc[0], End: m.Span.End}
		ctx := snippet(text, span)
		facts = append(facts, document.Fact{
			Subject:   string(family) + " Requirement",
			Predicate: PredicateHasValue,
			Object:    capPhrase(text[span.Start:span.End], 150),
			Confidence: a.score(ctx, evidence{
				strongModal: strings.Contains(strings.ToLower(text[span.Start:m.Span.Start]), "must") || strings.Contains(strings.ToLower(text[span.Start:m.Span.Start]), "shall"),
				numeric:     true,
				category:    regulatory,
			}),
			Kind:       document.FactMeasurement,
			Span:       span,
			Context:    ctx,
			Actionable: false,
		})
	}
	return facts
}

// orgActions emits (org, VERB, object) facts for organizations immediately
// followed by a recognized action verb.
func (a *Analyzer) orgActions(text string, orgs []document.Mention) []document.Fact {
	var facts []document.Fact
	for _, org := range orgs {
		tail := text[org.Span.End:]
		loc := actionRe.FindStringSubmatchIndex(tail)
		if loc == nil {
			continue
		}
		verb := strings.ToLower(tail[loc[2]:loc[3]])
		predicate, ok := actionPredicates[verb]
		if !ok {
			continue
		}

		end := sentenceEnd(text, org.Span.End+loc[1])
		object := capPhrase(text[org.Span.End+loc[1]:end], 150)
		if len(object) < 3 {
			continue
		}

		span := document.Span{Start: org.Span.Start, End: org.Span.End + loc[1] + len(object)}
		ctx := snippet(text, span)
		facts = append(facts, document.Fact{
			Subject:   org.Text,
			Predicate: predicate,
			Object:    object,
			Confidence: a.score(ctx, evidence{
				numeric:  numericRe.MatchString(object),
				citation: citationRe.MatchString(ctx),
			}),
			Kind:       document.FactOrgAction,
			Span:       span,
			Context:    ctx,
			Actionable: true,
		})
	}
	return facts
}

// quantitative emits (org, HAS_FIGURE, amount) facts for large money amounts
// or headcount figures co-occurring with an organization.
func (a *Analyzer) quantitative(text string, money, orgs []document.Mention) []document.Fact {
	if len(orgs) == 0 {
		return nil
	}

	var figures []document.Mention
	for _, m := range money {
		if parseMoneyAmount(m.Text) >= quantMoneyThreshold {
			figures = append(figures, m)
		}
	}
	for _, loc := range headcountRe.FindAllStringIndex(text, -1) {
		figures = append(figures, document.Mention{
			Span: document.Span{Start: loc[0], End: loc[1]},
			Text: text[loc[0]:loc[1]],
		})
	}

	var facts []document.Fact
	for _, fig := range figures {
		org, ok := nearestOrg(orgs, fig.Span)
		if !ok {
			continue
		}
		span := document.Span{Start: minInt(org.Span.Start, fig.Span.Start), End: maxInt(org.Span.End, fig.Span.End)}
		ctx := snippet(text, span)
		facts = append(facts, document.Fact{
			Subject:   org.Text,
			Predicate: PredicateHasFigure,
			Object:    fig.Text,
			Confidence: a.score(ctx, evidence{
				numeric: true,
			}),
			Kind:       document.FactQuantitative,
			Span:       span,
			Context:    ctx,
			Actionable: false,
		})
	}
	return facts
}

// nearestOrg finds the closest organization mention within the co-occurrence
// window of the figure span.
func nearestOrg(orgs []document.Mention, span document.Span) (document.Mention, bool) {
	best := -1
	bestDist := coOccurrenceWindow + 1
	for i, org := range orgs {
		d := 0
		switch {
		case org.Span.End <= span.Start:
			d = span.Start - org.Span.End
		case span.End <= org.Span.Start:
			d = org.Span.Start - span.End
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > coOccurrenceWindow {
		return document.Mention{}, false
	}
	return orgs[best], true
}

// parseMoneyAmount converts "$1,250,000" or "$1.2 million" to its numeric
// value; 0 means unparseable.
func parseMoneyAmount(s string) float64 {
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	mult := 1.0
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "billion"):
		mult, s = 1e9, strings.TrimSpace(s[:len(s)-len("billion")])
	case strings.HasSuffix(lower, "million"):
		mult, s = 1e6, strings.TrimSpace(s[:len(s)-len("million")])
	case strings.HasSuffix(lower, "thousand"):
		mult, s = 1e3, strings.TrimSpace(s[:len(s)-len("thousand")])
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v * mult
}

// dedupe collapses facts sharing (subject, predicate, object prefix),
// keeping the highest confidence.
func dedupe(facts []document.Fact) []document.Fact {
	type key struct {
		subject, predicate, object string
	}
	seen := make(map[key]int, len(facts))
	out := facts[:0]
	for _, f := range facts {
		obj := f.Object
		if len(obj) > 50 {
			obj = obj[:50]
		}
		k := key{f.Subject, f.Predicate, obj}
		if i, ok := seen[k]; ok {
			if f.Confidence > out[i].Confidence {
				out[i] = f
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, f)
	}
	return out
}

// suppressNearDuplicates drops facts whose object shares at least 60% of its
// leading words with an already-kept fact of the same predicate. Higher
// confidence wins.
func suppressNearDuplicates(facts []document.Fact) []document.Fact {
	order := make([]int, len(facts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return facts[order[a]].Confidence > facts[order[b]].Confidence })

	kept := make([]document.Fact, 0, len(facts))
	drop := make([]bool, len(facts))
	for _, i := range order {
		f := facts[i]
		words := leadingWords(f.Object, 5)
		dup := false
		for _, k := range kept {
			if k.Predicate != f.Predicate {
				continue
			}
			if wordOverlap(words, leadingWords(k.Object, 5)) >= 0.6 {
				dup = true
				break
			}
		}
		if dup {
			drop[i] = true
		} else {
			kept = append(kept, f)
		}
	}

	out := facts[:0]
	for i, f := range facts {
		if !drop[i] {
			out = append(out, f)
		}
	}
	return out
}

func leadingWords(s string, n int) []string {
	words := strings.Fields(strings.ToLower(s))
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func wordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}
	shared := 0
	for _, w := range a {
		if _, ok := set[w]; ok {
			shared++
		}
	}
	denom := len(a)
	if len(b) < denom {
		denom = len(b)
	}
	return float64(shared) / float64(denom)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
