// Package writer persists processed documents as Markdown with YAML
// frontmatter plus a machine-readable JSON sidecar.
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/observability"
	"github.com/corpusforge/corpus-engine/internal/visual"
)

// Frontmatter sections in output order. yaml.v3 preserves struct field
// order, which keeps the emitted frontmatter stable across runs.
type frontmatter struct {
	Conversion     conversionSection     `yaml:"conversion"`
	Processing     processingSection     `yaml:"processing"`
	Classification classificationSection `yaml:"classification"`
	EntityInsights entityInsightsSection `yaml:"entity_insights"`
	Normalization  normalizationSection  `yaml:"normalization"`
}

type conversionSection struct {
	Engine      string            `yaml:"engine"`
	ConvertedAt time.Time         `yaml:"converted_at"`
	ByteSize    int64             `yaml:"byte_size"`
	SHA256      string            `yaml:"sha256"`
	PageCount   int               `yaml:"page_count"`
	URL         *document.URLMeta `yaml:"url,omitempty"`
}

type processingSection struct {
	WordCount      int                `yaml:"word_count"`
	LineCount      int                `yaml:"line_count"`
	CharCount      int                `yaml:"char_count"`
	StageTimingsMs map[string]float64 `yaml:"stage_timings_ms"`
}

type classificationSection struct {
	PrimaryDomain            document.Domain          `yaml:"primary_domain"`
	PrimaryDomainConfidence  float64                  `yaml:"primary_domain_confidence"`
	PrimaryDocType           document.DocType         `yaml:"primary_doc_type"`
	PrimaryDocTypeConfidence float64                  `yaml:"primary_doc_type_confidence"`
	Routing                  routingSection           `yaml:"routing"`
}

type routingSection struct {
	SkipEntityExtraction bool   `yaml:"skip_entity_extraction"`
	DeepExtraction       bool   `yaml:"deep_extraction"`
	SpecializationRoute  string `yaml:"specialization_route,omitempty"`
}

type entityInsightsSection struct {
	TotalMentions int            `yaml:"total_mentions"`
	ByKind        map[string]int `yaml:"by_kind"`
	TopEntities   []string       `yaml:"top_entities,omitempty"`
	FactCount     int            `yaml:"fact_count"`
}

type normalizationSection struct {
	CanonicalCount   int     `yaml:"canonical_count"`
	DroppedOverlaps  int     `yaml:"dropped_overlaps"`
	ReductionPercent float64 `yaml:"reduction_percent"`
}

// sidecar is the <stem>_semantic.json document.
type sidecar struct {
	SourceFilename     string                                      `json:"source_filename"`
	Processing         processingJSON                              `json:"processing"`
	Classification     *document.Classification                    `json:"classification"`
	Entities           map[document.EntityKind][]document.Mention  `json:"entities"`
	NormalizedEntities []document.CanonicalEntity                  `json:"normalized_entities"`
	SemanticFacts      []document.Fact                             `json:"semantic_facts"`
}

type processingJSON struct {
	WordCount      int                `json:"word_count"`
	LineCount      int                `json:"line_count"`
	CharCount      int                `json:"char_count"`
	PageCount      int                `json:"page_count"`
	StageTimingsMs map[string]float64 `json:"stage_timings_ms"`
}

// Writer persists documents into a flat output directory.
type Writer struct {
	dir    string
	logger *observability.Logger
}

// New creates a writer rooted at dir, creating it if needed.
func New(dir string, logger *observability.Logger) (*Writer, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write persists the Markdown document, plus a JSON sidecar when the
// document carries semantic facts. Failed documents are not written; they
// appear only in the batch report.
func (w *Writer) Write(doc *document.Document) error {
	if !doc.Success {
		return fmt.Errorf("refusing to write failed document %s", doc.SourceName)
	}

	md, err := w.renderMarkdown(doc)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	mdPath := filepath.Join(w.dir, doc.SourceStem+".md")
	if err := w.atomicWrite(mdPath, md); err != nil {
		return fmt.Errorf("write %s: %w", mdPath, err)
	}

	event := w.logger.Debug().Str("markdown", mdPath)
	if len(doc.SemanticFacts) > 0 {
		side, err := renderSidecar(doc)
		if err != nil {
			return fmt.Errorf("render sidecar: %w", err)
		}
		sidePath := filepath.Join(w.dir, doc.SourceStem+"_semantic.json")
		if err := w.atomicWrite(sidePath, side); err != nil {
			return fmt.Errorf("write %s: %w", sidePath, err)
		}
		event = event.Str("sidecar", sidePath)
	}
	event.Msg("document written")
	return nil
}

func (w *Writer) renderMarkdown(doc *document.Document) ([]byte, error) {
	fm := buildFrontmatter(doc)

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n\n")
	buf.WriteString(visual.InsertAll(doc.Markdown, doc.Fragments))
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func buildFrontmatter(doc *document.Document) frontmatter {
	fm := frontmatter{
		Conversion: conversionSection{
			Engine:      doc.Conversion.Engine,
			ConvertedAt: doc.Conversion.ConvertedAt,
			ByteSize:    doc.Conversion.ByteSize,
			SHA256:      doc.Conversion.SHA256,
			PageCount:   doc.PageCount,
			URL:         doc.Conversion.URL,
		},
		Processing: processingSection{
			WordCount:      doc.WordCount,
			LineCount:      doc.LineCount,
			CharCount:      doc.CharCount,
			StageTimingsMs: stageTimings(doc),
		},
		Normalization: normalizationSection{
			CanonicalCount:   len(doc.NormalizedEntities),
			DroppedOverlaps:  doc.DroppedOverlaps,
			ReductionPercent: doc.EntityReductionPercent,
		},
	}

	if c := doc.Classification; c != nil {
		fm.Classification = classificationSection{
			PrimaryDomain:            c.PrimaryDomain,
			PrimaryDomainConfidence:  c.PrimaryDomainConfidence,
			PrimaryDocType:           c.PrimaryDocType,
			PrimaryDocTypeConfidence: c.PrimaryDocTypeConfidence,
			Routing: routingSection{
				SkipEntityExtraction: c.Routing.SkipEntityExtraction,
				DeepExtraction:       c.Routing.DeepExtraction,
				SpecializationRoute:  c.Routing.SpecializationRoute,
			},
		}
	}

	byKind := make(map[string]int, len(doc.RawEntities))
	for kind, mentions := range doc.RawEntities {
		if len(mentions) > 0 {
			byKind[string(kind)] = len(mentions)
		}
	}
	top := make([]string, 0, 5)
	for _, e := range doc.NormalizedEntities {
		top = append(top, e.Canonical)
		if len(top) == 5 {
			break
		}
	}
	fm.EntityInsights = entityInsightsSection{
		TotalMentions: doc.MentionCount(),
		ByKind:        byKind,
		TopEntities:   top,
		FactCount:     len(doc.SemanticFacts),
	}
	return fm
}

func renderSidecar(doc *document.Document) ([]byte, error) {
	side := sidecar{
		SourceFilename: doc.SourceName,
		Processing: processingJSON{
			WordCount:      doc.WordCount,
			LineCount:      doc.LineCount,
			CharCount:      doc.CharCount,
			PageCount:      doc.PageCount,
			StageTimingsMs: stageTimings(doc),
		},
		Classification:     doc.Classification,
		Entities:           doc.RawEntities,
		NormalizedEntities: doc.NormalizedEntities,
		SemanticFacts:      doc.SemanticFacts,
	}
	if side.Entities == nil {
		side.Entities = map[document.EntityKind][]document.Mention{}
	}
	if side.NormalizedEntities == nil {
		side.NormalizedEntities = []document.CanonicalEntity{}
	}
	if side.SemanticFacts == nil {
		side.SemanticFacts = []document.Fact{}
	}
	return json.MarshalIndent(side, "", "  ")
}

func stageTimings(doc *document.Document) map[string]float64 {
	out := make(map[string]float64, len(doc.StageTimings))
	for stage, ms := range doc.StageTimings {
		out[string(stage)] = ms
	}
	return out
}

// atomicWrite writes through a temp file and renames it into place, retrying
// once on failure.
func (w *Writer) atomicWrite(path string, data []byte) error {
	err := w.tryAtomicWrite(path, data)
	if err == nil {
		return nil
	}
	w.logger.Warn().Str("path", path).Err(err).Msg("write failed, retrying once")
	return w.tryAtomicWrite(path, data)
}

func (w *Writer) tryAtomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
