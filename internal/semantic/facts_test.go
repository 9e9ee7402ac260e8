package semantic

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/normalize"
)

func testDoc(text string, domain document.Domain) *document.Document {
	doc := document.New("test.txt")
	doc.Markdown = text
	doc.Classification = &document.Classification{PrimaryDomain: domain}
	doc.RawEntities = make(map[document.EntityKind][]document.Mention)
	return doc
}

func addMention(doc *document.Document, kind document.EntityKind, text string) {
	start := strings.Index(doc.Markdown, text)
	if start < 0 {
		panic(fmt.Sprintf("mention %q not in text", text))
	}
	doc.RawEntities[kind] = append(doc.RawEntities[kind], document.Mention{
		Span: document.Span{Start: start, End: start + len(text)},
		Text: text,
		Kind: kind,
	})
}

func newAnalyzer() *Analyzer {
	return New(normalize.NewUnitNormalizer(), nil)
}

func TestAnalyze_RequirementFact(t *testing.T) {
	doc := testDoc(
		"OSHA regulation 29 CFR 1926.95 requires all construction workers to wear hard hats above 6 feet.",
		document.DomainSafety,
	)

	facts := newAnalyzer().Analyze(doc)

	require.NotEmpty(t, facts)
	f := facts[0]
	assert.Equal(t, PredicateMustComplyWith, f.Predicate)
	assert.Equal(t, "Workers", f.Subject)
	assert.Contains(t, f.Object, "hard hats")
	assert.Equal(t, document.FactRequirement, f.Kind)
	assert.True(t, f.Actionable)
	assert.GreaterOrEqual(t, f.Confidence, 0.8)
	assert.NotEmpty(t, f.Context)
}

func TestAnalyze_ComplianceFact(t *testing.T) {
	doc := testDoc(
		"Violation of 29 CFR 1910.147 can result in fines up to $145,000 per incident.",
		document.DomainRegulatory,
	)
	addMention(doc, document.KindRegulation, "29 CFR 1910.147")

	facts := newAnalyzer().Analyze(doc)

	var compliance *document.Fact
	for i := range facts {
		if facts[i].Kind == document.FactCompliance {
			compliance = &facts[i]
			break
		}
	}
	require.NotNil(t, compliance)
	assert.Equal(t, "Violation of 29 CFR 1910.147", compliance.Subject)
	assert.Equal(t, PredicateResultsIn, compliance.Predicate)
	assert.Contains(t, compliance.Object, "$145,000")
	assert.GreaterOrEqual(t, compliance.Confidence, 0.75)
	assert.True(t, compliance.Actionable)
}

func TestAnalyze_MeasurementFact(t *testing.T) {
	doc := testDoc(
		"Guardrail height must be at least 42 inches along open sides.",
		document.DomainSafety,
	)
	addMention(doc, document.KindMeasurement, "42 inches")

	facts := newAnalyzer().Analyze(doc)

	var measurement *document.Fact
	for i := range facts {
		if facts[i].Kind == document.FactMeasurement {
			measurement = &facts[i]
			break
		}
	}
	require.NotNil(t, measurement)
	assert.Equal(t, "Distance Requirement", measurement.Subject)
	assert.Equal(t, PredicateHasValue, measurement.Predicate)
	assert.Contains(t, measurement.Object, "42 inches")
	assert.False(t, measurement.Actionable)
}

func TestAnalyze_OrgActionFact(t *testing.T) {
	doc := testDoc(
		"Acme Corporation provides annual safety training to all site personnel.",
		document.DomainGeneral,
	)
	addMention(doc, document.KindOrg, "Acme Corporation")

	facts := newAnalyzer().Analyze(doc)

	var action *document.Fact
	for i := range facts {
		if facts[i].Kind == document.FactOrgAction {
			action = &facts[i]
			break
		}
	}
	require.NotNil(t, action)
	assert.Equal(t, "Acme Corporation", action.Subject)
	assert.Equal(t, PredicateProvides, action.Predicate)
	assert.Contains(t, action.Object, "safety training")
}

func TestAnalyze_QuantitativeFact(t *testing.T) {
	doc := testDoc(
		"Globex reported revenue of $2.5 million and now has 1,200 employees.",
		document.DomainFinancial,
	)
	addMention(doc, document.KindOrg, "Globex")
	addMention(doc, document.KindMoney, "$2.5 million")

	facts := newAnalyzer().Analyze(doc)

	var figures []document.Fact
	for _, f := range facts {
		if f.Kind == document.FactQuantitative {
			figures = append(figures, f)
		}
	}
	require.Len(t, figures, 2)
	for _, f := range figures {
		assert.Equal(t, "Globex", f.Subject)
		assert.Equal(t, PredicateHasFigure, f.Predicate)
		assert.False(t, f.Actionable)
	}
}

func TestAnalyze_SmallMoneyIgnored(t *testing.T) {
	doc := testDoc("Globex paid $500 for repairs.", document.DomainGeneral)
	addMention(doc, document.KindOrg, "Globex")
	addMention(doc, document.KindMoney, "$500")

	facts := newAnalyzer().Analyze(doc)
	for _, f := range facts {
		assert.NotEqual(t, document.FactQuantitative, f.Kind)
	}
}

func TestAnalyze_DeduplicatesRepeatedStatements(t *testing.T) {
	sentence := "Employees must wear hearing protection in the mill. "
	doc := testDoc(strings.Repeat(sentence, 3), document.DomainSafety)

	facts := newAnalyzer().Analyze(doc)

	count := 0
	for _, f := range facts {
		if f.Predicate == PredicateMustComplyWith {
			count++
		}
	}
	assert.Equal(t, 1, count, "identical obligations must collapse to one fact")
}

func TestAnalyze_CapsFactCount(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Workers must complete orientation module %d before shift %d starts. ", i, i)
	}
	doc := testDoc(sb.String(), document.DomainSafety)

	facts := newAnalyzer().Analyze(doc)
	assert.LessOrEqual(t, len(facts), maxFacts)
}

func TestAnalyze_EmptyText(t *testing.T) {
	doc := testDoc("   ", document.DomainGeneral)
	assert.Empty(t, newAnalyzer().Analyze(doc))
}

func TestSnippet_CleansAndBounds(t *testing.T) {
	text := "# Heading\n\nSome **bold** sentence about safety. " + strings.Repeat("filler words here ", 30)
	s := snippet(text, document.Span{Start: 11, End: 40})

	assert.LessOrEqual(t, len(s), snippetMax)
	assert.NotContains(t, s, "#")
	assert.NotContains(t, s, "*")
	assert.NotContains(t, s, "\n")
}

func TestParseMoneyAmount(t *testing.T) {
	assert.Equal(t, 145000.0, parseMoneyAmount("$145,000"))
	assert.Equal(t, 2500000.0, parseMoneyAmount("$2.5 million"))
	assert.Equal(t, 3000000000.0, parseMoneyAmount("$3 billion"))
	assert.Equal(t, 0.0, parseMoneyAmount("$"))
}
