// Package document defines the in-memory model a document carries through the
// processing pipeline. A Document is created at conversion, grows monotonically
// through the middle stages, and is consumed by the writer. Stages only append
// to their own fields; nothing written by an earlier stage is rewritten later.
package document

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Span is a half-open byte interval [Start, End) into the document Markdown.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the span addresses text of the given length.
func (s Span) Valid(textLen int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= textLen
}

// Contains reports whether s fully contains other.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Mention is one textual occurrence of an entity.
type Mention struct {
	Span       Span       `json:"span"`
	Text       string     `json:"text"`
	Kind       EntityKind `json:"kind"`
	Confidence float64    `json:"confidence,omitempty"`
	Evidence   []string   `json:"evidence,omitempty"`
}

// CanonicalEntity is the deduplicated representative of a mention group.
type CanonicalEntity struct {
	ID        string                 `json:"id"`
	Canonical string                 `json:"canonical"`
	Kind      EntityKind             `json:"kind"`
	Aliases   []string               `json:"aliases"`
	Count     int                    `json:"count"`
	Spans     []Span                 `json:"spans"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Fact is a subject-predicate-object record with provenance.
type Fact struct {
	Subject    string   `json:"subject"`
	Predicate  string   `json:"predicate"`
	Object     string   `json:"object"`
	Confidence float64  `json:"confidence"`
	Kind       FactKind `json:"kind"`
	Span       Span     `json:"span"`
	Context    string   `json:"context"`
	Actionable bool     `json:"actionable"`
}

// RoutingDecision carries the classifier's hints for downstream stages.
type RoutingDecision struct {
	SkipEntityExtraction bool   `json:"skip_entity_extraction"`
	DeepExtraction       bool   `json:"deep_extraction"`
	SpecializationRoute  string `json:"specialization_route"`
}

// Classification holds the ranked domain and document-type scores.
// Confidences are raw keyword scores, not normalized to [0,1].
type Classification struct {
	Domains                  map[Domain]float64  `json:"domains"`
	DocTypes                 map[DocType]float64 `json:"doc_types"`
	PrimaryDomain            Domain              `json:"primary_domain"`
	PrimaryDomainConfidence  float64             `json:"primary_domain_confidence"`
	PrimaryDocType           DocType             `json:"primary_doc_type"`
	PrimaryDocTypeConfidence float64             `json:"primary_doc_type_confidence"`
	Routing                  RoutingDecision     `json:"routing"`
}

// URLMeta records provenance for documents fetched from a URL.
type URLMeta struct {
	URL          string            `json:"url"`
	SafeFilename string            `json:"safe_filename"`
	ContentType  string            `json:"content_type"`
	HTTPStatus   int               `json:"http_status"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// ConversionMeta describes how the source bytes became Markdown.
type ConversionMeta struct {
	Engine      string    `json:"engine"`
	ConvertedAt time.Time `json:"converted_at"`
	ByteSize    int64     `json:"byte_size"`
	SHA256      string    `json:"sha256"`
	URL         *URLMeta  `json:"url,omitempty"`
}

// Document is the unit of work flowing through the pipeline. Each stage
// appends only to the fields it owns; Success plus Error is the sole
// cross-stage control signal.
type Document struct {
	// Stage 1: Convert.
	SourcePath string
	SourceName string
	SourceStem string
	Markdown   string
	PageCount  int
	Conversion ConversionMeta

	// Stage 2: Process.
	WordCount     int
	LineCount     int
	CharCount     int
	SourceBytes   int64

	// Stage 3: Classify.
	Classification *Classification

	// Stage 4: Extract.
	RawEntities map[EntityKind][]Mention

	// Stage 5: Normalize.
	NormalizedEntities     []CanonicalEntity
	DroppedOverlaps        int
	EntityReductionPercent float64

	// Stage 6: Semantic.
	SemanticFacts []Fact

	// Visual-element placeholders and their enhanced fragments, keyed by
	// placeholder id. Flat mapping; insertion is idempotent.
	Fragments map[string]string

	// Bookkeeping, updated at every stage.
	StageTimings map[Stage]float64
	Success      bool
	Error        string
	FailedStage  Stage

	// Skipped marks inputs with nothing to process, such as empty files.
	// A skipped document is neither a success with output nor a failure.
	Skipped    bool
	SkipReason string
}

// New creates a Document for a source path with stage-1 identity fields set.
func New(sourcePath string) *Document {
	name := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return &Document{
		SourcePath:   sourcePath,
		SourceName:   name,
		SourceStem:   stem,
		Success:      true,
		StageTimings: make(map[Stage]float64),
		Fragments:    make(map[string]string),
	}
}

// Fail marks the document failed at a stage. The first failure wins; later
// stages are skipped by the runner.
func (d *Document) Fail(stage Stage, err error) {
	if !d.Success {
		return
	}
	d.Success = false
	d.FailedStage = stage
	if err != nil {
		d.Error = err.Error()
	}
}

// Skip marks the document as having nothing to process. Later stages and
// output are skipped, and the batch report counts it apart from failures.
func (d *Document) Skip(reason string) {
	d.Skipped = true
	d.SkipReason = reason
}

// RecordTiming stores the elapsed milliseconds for a stage.
func (d *Document) RecordTiming(stage Stage, elapsed time.Duration) {
	d.StageTimings[stage] = float64(elapsed.Microseconds()) / 1000.0
}

// MentionCount returns the total number of raw mentions across kinds.
func (d *Document) MentionCount() int {
	n := 0
	for _, ms := range d.RawEntities {
		n += len(ms)
	}
	return n
}

// AttributeKeys returns the names of populated attribute groups, used to
// assert monotone attribute growth across stages.
func (d *Document) AttributeKeys() []string {
	keys := []string{"source_path", "source_name", "source_stem"}
	if d.Markdown != "" {
		keys = append(keys, "markdown", "page_count", "conversion_meta")
	}
	if d.WordCount > 0 || d.CharCount > 0 {
		keys = append(keys, "word_count", "line_count", "char_count")
	}
	if d.Classification != nil {
		keys = append(keys, "classification")
	}
	if d.RawEntities != nil {
		keys = append(keys, "raw_entities")
	}
	if d.NormalizedEntities != nil {
		keys = append(keys, "normalized_entities")
	}
	if d.SemanticFacts != nil {
		keys = append(keys, "semantic_facts")
	}
	return keys
}

// VerifySpans checks that every mention and fact span addresses the recorded
// text. Returns the first violation found.
func (d *Document) VerifySpans() error {
	n := len(d.Markdown)
	for kind, mentions := range d.RawEntities {
		for _, m := range mentions {
			if !m.Span.Valid(n) {
				return fmt.Errorf("%s mention span [%d,%d) out of range", kind, m.Span.Start, m.Span.End)
			}
			if d.Markdown[m.Span.Start:m.Span.End] != m.Text {
				return fmt.Errorf("%s mention text %q does not match span", kind, m.Text)
			}
		}
	}
	for _, f := range d.SemanticFacts {
		if !f.Span.Valid(n) {
			return fmt.Errorf("fact span [%d,%d) out of range", f.Span.Start, f.Span.End)
		}
	}
	return nil
}
