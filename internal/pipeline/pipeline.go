// Package pipeline orchestrates the seven-stage document flow: convert,
// process, classify, extract, normalize, semantic, write.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/corpusforge/corpus-engine/internal/classify"
	"github.com/corpusforge/corpus-engine/internal/decode"
	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/extract"
	"github.com/corpusforge/corpus-engine/internal/normalize"
	"github.com/corpusforge/corpus-engine/internal/observability"
	"github.com/corpusforge/corpus-engine/internal/semantic"
	"github.com/corpusforge/corpus-engine/internal/visual"
	"github.com/corpusforge/corpus-engine/internal/writer"
)

// Runner executes the full stage sequence for one document at a time. A
// single Runner is shared by all pool workers; every field is safe for
// concurrent use.
type Runner struct {
	logger     *observability.Logger
	decoders   *decode.Registry
	fetcher    *decode.Fetcher
	classifier *classify.Classifier
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	analyzer   *semantic.Analyzer
	writer     *writer.Writer
	visuals    *visual.Queue

	strategy document.Strategy
	timeout  time.Duration
	textOnly bool
	now      func() time.Time
}

// RunnerOptions bundle Runner construction inputs.
type RunnerOptions struct {
	Decoders   *decode.Registry
	Fetcher    *decode.Fetcher
	Classifier *classify.Classifier
	Extractor  *extract.Extractor
	Normalizer *normalize.Normalizer
	Analyzer   *semantic.Analyzer
	Writer     *writer.Writer
	// Visuals may be nil; placeholders then stay in the output unchanged.
	Visuals  *visual.Queue
	Strategy document.Strategy
	Timeout  time.Duration
	// TextOnly skips classification, extraction, normalization, and
	// semantic analysis; conversion output is written as-is.
	TextOnly bool
	// Now supplies timestamps and stage timings; defaults to time.Now.
	// A fixed clock makes output files byte-for-byte reproducible.
	Now func() time.Time
}

// NewRunner wires the stage implementations together.
func NewRunner(opts RunnerOptions, logger *observability.Logger) *Runner {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.Decoders == nil {
		opts.Decoders = decode.NewRegistry()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		logger:     logger,
		decoders:   opts.Decoders,
		fetcher:    opts.Fetcher,
		classifier: opts.Classifier,
		extractor:  opts.Extractor,
		normalizer: opts.Normalizer,
		analyzer:   opts.Analyzer,
		writer:     opts.Writer,
		visuals:    opts.Visuals,
		strategy:   opts.Strategy,
		timeout:    opts.Timeout,
		textOnly:   opts.TextOnly,
		now:        opts.Now,
	}
}

// Process runs every stage over one source file. A stage failure marks the
// document and skips the remaining analysis stages, but the flow always
// reaches the write stage so the batch report sees a terminal state. The
// returned document is never nil.
func (r *Runner) Process(ctx context.Context, sourcePath string) *document.Document {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := document.New(sourcePath)
	log := r.logger.WithDocument(doc.SourceName)
	log.Info().Str("path", sourcePath).Msg("processing document")

	analyze := func() bool { return doc.Success && !doc.Skipped }

	r.timed(doc, document.StageConvert, func() error { return r.convert(doc) })
	if analyze() {
		r.timed(doc, document.StageProcess, func() error { return r.process(doc) })
	}
	if analyze() && !r.textOnly {
		r.timed(doc, document.StageClassify, func() error { return r.classify(doc) })
	}
	if analyze() && !r.textOnly {
		r.timed(doc, document.StageExtract, func() error { return r.extract(ctx, doc) })
	}
	if analyze() && !r.textOnly {
		r.timed(doc, document.StageNormalize, func() error { return r.normalizeEntities(doc) })
	}
	if analyze() && !r.textOnly {
		r.timed(doc, document.StageSemantic, func() error { return r.semanticFacts(doc) })
	}
	r.timed(doc, document.StageWrite, func() error { return r.write(doc) })

	switch {
	case doc.Skipped:
		log.Info().Str("reason", doc.SkipReason).Msg("document skipped")
	case doc.Success:
		log.Info().
			Int("mentions", doc.MentionCount()).
			Int("entities", len(doc.NormalizedEntities)).
			Int("facts", len(doc.SemanticFacts)).
			Msg("document complete")
	default:
		log.Error().
			Str("stage", string(doc.FailedStage)).
			Str("error", doc.Error).
			Msg("document failed")
	}
	return doc
}

// ProcessURL fetches a remote document to a temp file and runs the stage
// sequence over it, recording URL provenance in the conversion metadata.
func (r *Runner) ProcessURL(ctx context.Context, rawURL string) *document.Document {
	if r.fetcher == nil {
		doc := document.New(rawURL)
		doc.Fail(document.StageConvert, fmt.Errorf("url input not configured"))
		return doc
	}

	res, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		doc := document.New(decode.SafeFilename(rawURL, ""))
		doc.Fail(document.StageConvert, fmt.Errorf("fetch %s: %w", rawURL, err))
		r.timed(doc, document.StageWrite, func() error { return r.write(doc) })
		return doc
	}
	defer os.Remove(res.TempPath)

	doc := r.processFetched(ctx, res)
	return doc
}

func (r *Runner) processFetched(ctx context.Context, res *decode.FetchResult) *document.Document {
	doc := r.Process(ctx, res.TempPath)

	// Rewrite the temp-file identity with the URL-derived one.
	doc.SourcePath = res.URL
	doc.SourceName = res.SafeFilename
	doc.SourceStem = strings.TrimSuffix(res.SafeFilename, filepath.Ext(res.SafeFilename))
	doc.Conversion.URL = &document.URLMeta{
		URL:          res.URL,
		SafeFilename: res.SafeFilename,
		ContentType:  res.ContentType,
		HTTPStatus:   res.HTTPStatus,
		Headers:      res.Headers,
	}
	return doc
}

// timed runs one stage, records its wall time in milliseconds, and converts
// an error into the document's terminal failure state.
func (r *Runner) timed(doc *document.Document, stage document.Stage, fn func() error) {
	start := r.now()
	err := fn()
	doc.RecordTiming(stage, r.now().Sub(start))
	if err != nil {
		doc.Fail(stage, err)
	}
}

func (r *Runner) convert(doc *document.Document) error {
	data, err := os.ReadFile(doc.SourcePath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if len(data) == 0 {
		doc.Skip("file empty")
		return nil
	}

	sum := sha256.Sum256(data)
	ext := filepath.Ext(doc.SourcePath)

	res, engine, err := r.decoders.Decode(data, ext)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	doc.Markdown = res.Text
	doc.PageCount = res.PageCount
	doc.SourceBytes = int64(len(data))
	doc.Conversion = document.ConversionMeta{
		Engine:      engine,
		ConvertedAt: r.now().UTC(),
		ByteSize:    int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
	}

	if r.visuals != nil && len(res.Placeholders) > 0 {
		queued := r.visuals.EnqueueDocument(doc, res.Placeholders)
		r.logger.WithDocument(doc.SourceName).Debug().
			Int("queued", queued).
			Msg("visual elements queued")
	}
	return nil
}

func (r *Runner) process(doc *document.Document) error {
	text := doc.Markdown
	doc.WordCount = len(strings.Fields(text))
	doc.CharCount = utf8.RuneCountInString(text)
	doc.LineCount = strings.Count(text, "\n")
	if len(text) > 0 && !strings.HasSuffix(text, "\n") {
		doc.LineCount++
	}
	return nil
}

func (r *Runner) classify(doc *document.Document) error {
	if r.classifier == nil {
		return nil
	}
	doc.Classification = r.classifier.Classify(doc.Markdown)
	return nil
}

// extract always runs the recognizers. The classifier's skip hint is
// recorded for downstream consumers but does not gate extraction here:
// short documents still get their entities.
func (r *Runner) extract(ctx context.Context, doc *document.Document) error {
	if r.extractor == nil {
		return nil
	}
	mentions, err := r.extractor.Extract(ctx, doc.Markdown)
	if err != nil {
		return err
	}
	doc.RawEntities = mentions
	return nil
}

func (r *Runner) normalizeEntities(doc *document.Document) error {
	if r.normalizer == nil {
		return nil
	}
	res := r.normalizer.Normalize(doc.RawEntities)
	doc.NormalizedEntities = res.Entities
	doc.DroppedOverlaps = res.DroppedOverlaps
	doc.EntityReductionPercent = res.ReductionPercent
	return nil
}

func (r *Runner) semanticFacts(doc *document.Document) error {
	if r.analyzer == nil {
		return nil
	}
	doc.SemanticFacts = r.analyzer.Analyze(doc)
	return nil
}

// write persists successful documents. Failed and skipped documents produce
// no output files; their terminal state flows to the batch report instead.
func (r *Runner) write(doc *document.Document) error {
	if !doc.Success || doc.Skipped || r.writer == nil {
		return nil
	}
	return r.writer.Write(doc)
}
