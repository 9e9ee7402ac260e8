// Package engine provides the public Go API for the corpus engine. It wires
// the pipeline stages from a Config and exposes single-document and batch
// processing without the CLI surface.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/corpusforge/corpus-engine/internal/classify"
	"github.com/corpusforge/corpus-engine/internal/config"
	"github.com/corpusforge/corpus-engine/internal/decode"
	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/extract"
	"github.com/corpusforge/corpus-engine/internal/normalize"
	"github.com/corpusforge/corpus-engine/internal/observability"
	"github.com/corpusforge/corpus-engine/internal/pipeline"
	"github.com/corpusforge/corpus-engine/internal/semantic"
	"github.com/corpusforge/corpus-engine/internal/visual"
	"github.com/corpusforge/corpus-engine/internal/writer"
)

// Engine runs documents through the processing pipeline. A single Engine is
// safe for concurrent use; construct once and share.
type Engine struct {
	cfg    *config.Config
	logger *observability.Logger

	runner  *pipeline.Runner
	writer  *writer.Writer
	visuals *visual.Queue

	mu        sync.Mutex
	fragments map[string]map[string]string

	closeOnce sync.Once
	closeErr  error
}

// New builds an Engine from configuration. A nil config uses defaults; a nil
// logger discards log output.
func New(cfg *config.Config, logger *observability.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = observability.Nop()
	}

	strategy, err := document.ParseStrategy(cfg.Pipeline.Strategy)
	if err != nil {
		return nil, err
	}

	out, err := writer.New(cfg.Output.Dir, logger)
	if err != nil {
		return nil, err
	}

	corpus, err := extract.LoadCorpus(cfg.Extract.CorpusDir, logger)
	if err != nil {
		return nil, err
	}
	catalog := extract.DefaultCatalog()
	if cfg.Extract.PatternCatalogPath != "" {
		catalog, err = extract.LoadCatalog(cfg.Extract.PatternCatalogPath)
		if err != nil {
			return nil, err
		}
	}
	extractor, err := extract.NewExtractor(extract.Config{
		Corpus:              corpus,
		Catalog:             catalog,
		PersonMinConfidence: cfg.Extract.PersonMinConfidence,
	}, logger)
	if err != nil {
		return nil, err
	}

	normalizer := normalize.New()

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		writer:    out,
		fragments: make(map[string]map[string]string),
	}

	if cfg.Visual.Enabled {
		e.visuals = visual.NewQueue(visual.Options{
			Workers:  cfg.Visual.Workers,
			Capacity: cfg.Visual.QueueCapacity,
			Tables:   cfg.Visual.Tables,
			Images:   cfg.Visual.Images,
			Results:  e.storeFragment,
		}, logger)
	}

	e.runner = pipeline.NewRunner(pipeline.RunnerOptions{
		Decoders: decode.NewRegistry(),
		Fetcher:  decode.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxBodyBytes),
		Classifier: classify.New(classify.Thresholds{
			SkipExtractionBelow: cfg.Classify.SkipExtractionBelow,
			DeepExtractionAbove: cfg.Classify.DeepExtractionAbove,
			SpecializationAbove: cfg.Classify.SpecializationAbove,
		}),
		Extractor:  extractor,
		Normalizer: normalizer,
		Analyzer:   semantic.New(normalizer.Units(), logger),
		Writer:     out,
		Visuals:    e.visuals,
		Strategy:   strategy,
		Timeout:    cfg.Pipeline.Timeout,
	}, logger)

	return e, nil
}

// ProcessFile runs one local file through the pipeline. The returned document
// carries its terminal state; inspect Success and Error rather than an error
// return, matching batch behavior.
func (e *Engine) ProcessFile(ctx context.Context, path string) *document.Document {
	return e.runner.Process(ctx, path)
}

// ProcessURL fetches a remote document and runs it through the pipeline.
func (e *Engine) ProcessURL(ctx context.Context, rawURL string) *document.Document {
	return e.runner.ProcessURL(ctx, rawURL)
}

// BatchResult bundles a batch's documents with its summary report.
type BatchResult struct {
	Documents []*document.Document
	Report    *pipeline.Report
}

// ProcessBatch runs the inputs through a bounded worker pool. URLs are
// detected by scheme prefix; everything else is treated as a local path.
func (e *Engine) ProcessBatch(ctx context.Context, inputs []string) *BatchResult {
	jobs := make([]pipeline.Job, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, pipeline.Job{Path: in, IsURL: isURL(in)})
	}

	pool := pipeline.NewPool(e.runner, pipeline.PoolOptions{
		Workers:        e.cfg.Pipeline.Workers,
		StartBarrierAt: e.cfg.Pipeline.StartBarrierAt,
		DrainTimeout:   e.cfg.Pipeline.DrainTimeout,
	}, e.logger)

	start := time.Now()
	docs := pool.Run(ctx, jobs)
	strategy, _ := document.ParseStrategy(e.cfg.Pipeline.Strategy)
	report := pipeline.BuildReport(docs, strategy, e.cfg.Pipeline.Workers, time.Since(start))

	e.applyFragments(docs)
	return &BatchResult{Documents: docs, Report: report}
}

// Close drains the visual queue and applies any late fragments. Call after
// the last batch; subsequent calls return the first result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.visuals != nil {
			e.closeErr = e.visuals.Close(e.cfg.Visual.DrainTimeout)
		}
	})
	return e.closeErr
}

func (e *Engine) storeFragment(sourcePath, placeholderID, fragment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fragments[sourcePath] == nil {
		e.fragments[sourcePath] = make(map[string]string)
	}
	e.fragments[sourcePath][placeholderID] = fragment
}

// applyFragments rewrites documents whose visual elements finished after the
// write stage. Marker replacement is idempotent, so rewriting an already
// enhanced document is harmless.
func (e *Engine) applyFragments(docs []*document.Document) {
	for _, doc := range docs {
		if !doc.Success || doc.Skipped {
			continue
		}
		e.mu.Lock()
		got := e.fragments[doc.SourcePath]
		e.mu.Unlock()
		if len(got) == 0 {
			continue
		}
		for id, fragment := range got {
			doc.Fragments[id] = fragment
		}
		if err := e.writer.Write(doc); err != nil {
			e.logger.Warn().Str("document", doc.SourceName).Err(err).Msg("fragment rewrite failed")
		}
	}
}

func isURL(s string) bool {
	return len(s) > 8 && (s[:7] == "http://" || s[:8] == "https://")
}
