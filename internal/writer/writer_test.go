package writer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/corpus-engine/internal/document"
)

func sampleDoc(t *testing.T) *document.Document {
	t.Helper()

	doc := document.New("/tmp/in/osha_notice.txt")
	doc.Markdown = "Workers must wear hard hats in construction zones.\n"
	doc.PageCount = 1
	doc.Conversion = document.ConversionMeta{
		Engine:      "text",
		ConvertedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ByteSize:    51,
		SHA256:      "deadbeef",
	}
	doc.WordCount = 8
	doc.LineCount = 1
	doc.CharCount = 51
	doc.Classification = &document.Classification{
		PrimaryDomain:            document.DomainSafety,
		PrimaryDomainConfidence:  4.0,
		PrimaryDocType:           document.DocTypeSafety,
		PrimaryDocTypeConfidence: 2.0,
	}
	doc.RawEntities = map[document.EntityKind][]document.Mention{
		document.KindSafetyTerm: {
			{Span: document.Span{Start: 18, End: 27}, Text: "hard hats", Kind: document.KindSafetyTerm},
		},
	}
	doc.NormalizedEntities = []document.CanonicalEntity{
		{ID: "e1", Canonical: "hard hats", Kind: document.KindSafetyTerm, Count: 1},
	}
	doc.SemanticFacts = []document.Fact{
		{Subject: "Workers", Predicate: "MUST_COMPLY_WITH", Object: "wear hard hats in construction zones", Confidence: 0.8},
	}
	doc.RecordTiming(document.StageConvert, 2*time.Millisecond)
	doc.RecordTiming(document.StageWrite, time.Millisecond)
	return doc
}

func TestWrite_FrontmatterSectionOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	doc := sampleDoc(t)
	require.NoError(t, w.Write(doc))

	raw, err := os.ReadFile(filepath.Join(dir, "osha_notice.md"))
	require.NoError(t, err)
	md := string(raw)

	require.True(t, strings.HasPrefix(md, "---\n"))
	body := md[strings.Index(md, "\n---\n\n")+len("\n---\n\n"):]
	assert.Contains(t, body, "Workers must wear hard hats")

	// Section order is fixed regardless of which stages populated data.
	positions := []int{
		strings.Index(md, "\nconversion:"),
		strings.Index(md, "\nprocessing:"),
		strings.Index(md, "\nclassification:"),
		strings.Index(md, "\nentity_insights:"),
		strings.Index(md, "\nnormalization:"),
	}
	for i, pos := range positions {
		require.GreaterOrEqual(t, pos, 0, "section %d missing", i)
		if i > 0 {
			assert.Greater(t, pos, positions[i-1])
		}
	}
}

func TestWrite_SidecarShape(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleDoc(t)))

	raw, err := os.ReadFile(filepath.Join(dir, "osha_notice_semantic.json"))
	require.NoError(t, err)

	var side map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &side))
	for _, key := range []string{
		"source_filename", "processing", "classification",
		"entities", "normalized_entities", "semantic_facts",
	} {
		assert.Contains(t, side, key)
	}

	var name string
	require.NoError(t, json.Unmarshal(side["source_filename"], &name))
	assert.Equal(t, "osha_notice.txt", name)
}

func TestWrite_EmptyCollectionsSerializeAsEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	doc := document.New("/tmp/in/blank.txt")
	doc.Markdown = "the site must be inspected\n"
	doc.SemanticFacts = []document.Fact{
		{Subject: "site", Predicate: "MUST_COMPLY_WITH", Object: "be inspected", Confidence: 0.6},
	}
	require.NoError(t, w.Write(doc))

	raw, err := os.ReadFile(filepath.Join(dir, "blank_semantic.json"))
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"normalized_entities": []`)
	assert.Contains(t, s, `"entities": {}`)
	assert.NotContains(t, s, `"normalized_entities": null`)
}

func TestWrite_NoFactsOmitsSidecar(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	doc := document.New("/tmp/in/nofacts.txt")
	doc.Markdown = "nothing actionable here\n"
	require.NoError(t, w.Write(doc))

	_, err = os.Stat(filepath.Join(dir, "nofacts.md"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "nofacts_semantic.json"))
	assert.True(t, os.IsNotExist(err), "sidecar must only exist when facts were extracted")
}

func TestWrite_RefusesFailedDocument(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	doc := document.New("/tmp/in/bad.docx")
	doc.Fail(document.StageConvert, os.ErrInvalid)

	require.Error(t, w.Write(doc))
	_, statErr := os.Stat(filepath.Join(dir, "bad.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWrite_AppliesVisualFragments(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	doc := sampleDoc(t)
	doc.Markdown += "\n<!-- visual:tbl-1 -->\n"
	doc.Fragments["tbl-1"] = "| col |\n| --- |\n| val |"
	require.NoError(t, w.Write(doc))

	raw, err := os.ReadFile(filepath.Join(dir, "osha_notice.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "| col |")
	assert.NotContains(t, string(raw), "<!-- visual:tbl-1 -->")
}

func TestWrite_IsRewritableInPlace(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	require.NoError(t, err)

	doc := sampleDoc(t)
	require.NoError(t, w.Write(doc))
	first, err := os.ReadFile(filepath.Join(dir, "osha_notice.md"))
	require.NoError(t, err)

	// A second write, as done after visual enhancement, replaces the file.
	require.NoError(t, w.Write(doc))
	second, err := os.ReadFile(filepath.Join(dir, "osha_notice.md"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
