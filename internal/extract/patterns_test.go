package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/corpus-engine/internal/document"
)

func newPatternRecognizer(t *testing.T) *PatternRecognizer {
	t.Helper()
	r, err := NewPatternRecognizer(DefaultCatalog())
	require.NoError(t, err)
	return r
}

func TestPatternRecognizer_Money(t *testing.T) {
	r := newPatternRecognizer(t)

	got := r.Recognize("Fines up to $145,000 per violation, or $2.5 million total.")
	require.Len(t, got[document.KindMoney], 2)
	assert.Equal(t, "$145,000", got[document.KindMoney][0].Text)
	assert.Equal(t, "$2.5 million", got[document.KindMoney][1].Text)
}

func TestPatternRecognizer_Regulation(t *testing.T) {
	r := newPatternRecognizer(t)

	got := r.Recognize("See 29 CFR 1926.95 and OSHA 1910.147, plus ISO 9001 and ANSI Z359.1.")
	texts := make([]string, 0, 4)
	for _, m := range got[document.KindRegulation] {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "29 CFR 1926.95")
	assert.Contains(t, texts, "OSHA 1910.147")
	assert.Contains(t, texts, "ISO 9001")
	assert.Contains(t, texts, "ANSI Z359.1")
}

func TestPatternRecognizer_Measurement(t *testing.T) {
	r := newPatternRecognizer(t)

	got := r.Recognize("Guardrails must be 42 inches high and withstand 200 pounds; work above 6 feet requires protection.")
	require.Len(t, got[document.KindMeasurement], 3)
	assert.Equal(t, "42 inches", got[document.KindMeasurement][0].Text)
	assert.Equal(t, "200 pounds", got[document.KindMeasurement][1].Text)
	assert.Equal(t, "6 feet", got[document.KindMeasurement][2].Text)
}

func TestPatternRecognizer_ContactAndTemporal(t *testing.T) {
	r := newPatternRecognizer(t)

	got := r.Recognize("Contact safety@example.com or (555) 123-4567 by March 15, 2024 at 9:30 am. Details: https://example.com/safety.")

	require.Len(t, got[document.KindEmail], 1)
	assert.Equal(t, "safety@example.com", got[document.KindEmail][0].Text)

	require.Len(t, got[document.KindPhone], 1)
	require.Len(t, got[document.KindDate], 1)
	assert.Equal(t, "March 15, 2024", got[document.KindDate][0].Text)
	require.Len(t, got[document.KindTime], 1)
	require.Len(t, got[document.KindURL], 1)
}

func TestPatternRecognizer_Percentage(t *testing.T) {
	r := newPatternRecognizer(t)

	got := r.Recognize("Incidents fell 23% after training, a 4.5 percent improvement per quarter.")
	require.Len(t, got[document.KindPercentage], 2)
	assert.Equal(t, "23%", got[document.KindPercentage][0].Text)
	assert.Equal(t, "4.5 percent", got[document.KindPercentage][1].Text)
}

func TestNewPatternRecognizer_RejectsInvalidRegex(t *testing.T) {
	_, err := NewPatternRecognizer(Catalog{Patterns: []PatternSpec{
		{Name: "bad", Kind: "MONEY", Regex: `(?=lookahead)`},
	}})
	require.Error(t, err)
}

func TestNewPatternRecognizer_RejectsUnknownKind(t *testing.T) {
	_, err := NewPatternRecognizer(Catalog{Patterns: []PatternSpec{
		{Name: "odd", Kind: "NOT_A_KIND", Regex: `x`},
	}})
	require.Error(t, err)
}
