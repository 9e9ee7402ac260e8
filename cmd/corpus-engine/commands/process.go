package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corpusforge/corpus-engine/cmd/corpus-engine/ui"
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

var (
	processOutputDir string
	processWorkers   int
	processStrategy  string
	processTimeout   time.Duration
	processStartAt   string
	processNoVisual  bool
	processNoTables  bool
	processNoImages  bool
	processNoTagging bool
	processTextOnly  bool
	processStrict    bool
)

var processCmd = &cobra.Command{
	Use:   "process [inputs...]",
	Short: "Process documents through the full pipeline",
	Long: `Process runs each input through conversion, text statistics,
classification, entity extraction, normalization, semantic analysis, and
output writing. Inputs may be files, directories, glob patterns, or URLs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutputDir, "output-dir", "o", "", "output directory (default from config)")
	processCmd.Flags().IntVarP(&processWorkers, "workers", "w", 0, "worker count (default: CPU count)")
	processCmd.Flags().StringVar(&processStrategy, "strategy", "", "conversion strategy: fast, vlm, or hybrid")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 0, "per-document timeout")
	processCmd.Flags().StringVar(&processStartAt, "start-at", "", "coordinated start time (RFC3339)")
	processCmd.Flags().BoolVar(&processNoVisual, "no-visual", false, "disable visual element enhancement")
	processCmd.Flags().BoolVar(&processNoTables, "no-tables", false, "skip table enhancement")
	processCmd.Flags().BoolVar(&processNoImages, "no-images", false, "skip image enhancement")
	processCmd.Flags().BoolVar(&processNoTagging, "no-tagging", false, "skip classification")
	processCmd.Flags().BoolVar(&processTextOnly, "text-only", false, "convert only, skip all analysis stages")
	processCmd.Flags().BoolVar(&processStrict, "strict", false, "exit nonzero when any document fails")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyProcessFlags(cfg)

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "corpus-engine",
	})
	ui.Init(noColor, verbose)

	strategy, err := document.ParseStrategy(cfg.Pipeline.Strategy)
	if err != nil {
		return err
	}

	registry := decode.NewRegistry()
	jobs, err := collectJobs(args, registry)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no supported input documents found")
	}

	ui.Section("Document Processing")
	ui.KeyValue("documents", fmt.Sprintf("%d", len(jobs)))
	ui.KeyValue("workers", fmt.Sprintf("%d", cfg.Pipeline.Workers))
	ui.KeyValue("strategy", string(strategy))
	ui.KeyValue("output", cfg.Output.Dir)
	ui.Newline()

	runner, out, visuals, fragments, err := buildRunner(cfg, registry, strategy, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := ui.NewProgressBar(int64(len(jobs)), "processing")
	pool := pipeline.NewPool(runner, pipeline.PoolOptions{
		Workers:        cfg.Pipeline.Workers,
		StartBarrierAt: cfg.Pipeline.StartBarrierAt,
		DrainTimeout:   cfg.Pipeline.DrainTimeout,
		OnDocument: func(*document.Document) {
			bar.Add(1)
		},
	}, logger)

	start := time.Now()
	docs := pool.Run(ctx, jobs)
	bar.Finish()

	if visuals != nil {
		if err := visuals.Close(cfg.Visual.DrainTimeout); err != nil {
			ui.Warning("%v", err)
		}
		rewriteWithFragments(docs, fragments, out, logger)
	}

	elapsed := time.Since(start)
	report := pipeline.BuildReport(docs, strategy, cfg.Pipeline.Workers, elapsed)
	reportPath, err := report.Write(cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("write batch report: %w", err)
	}

	ui.Newline()
	for _, doc := range docs {
		switch {
		case doc.Skipped:
			ui.Warning("skipped %s: %s", doc.SourceName, doc.SkipReason)
		case doc.Success:
			ui.Verbose("processed %s (%d entities, %d facts)",
				doc.SourceName, len(doc.NormalizedEntities), len(doc.SemanticFacts))
		default:
			ui.Error("%s failed at %s: %s", doc.SourceName, doc.FailedStage, doc.Error)
		}
	}
	ui.Success("%d/%d documents processed in %s", report.Succeeded, report.TotalDocuments, ui.FormatDuration(elapsed))
	if report.Skipped > 0 {
		ui.KeyValue("skipped", fmt.Sprintf("%d", report.Skipped))
	}
	ui.KeyValue("report", reportPath)

	if processStrict && report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, report.TotalDocuments)
	}
	return nil
}

func applyProcessFlags(cfg *config.Config) {
	if processOutputDir != "" {
		cfg.Output.Dir = processOutputDir
	}
	if processWorkers > 0 {
		cfg.Pipeline.Workers = processWorkers
	}
	if processStrategy != "" {
		cfg.Pipeline.Strategy = processStrategy
	}
	if processTimeout > 0 {
		cfg.Pipeline.Timeout = processTimeout
	}
	if processStartAt != "" {
		if at, err := time.Parse(time.RFC3339, processStartAt); err == nil {
			cfg.Pipeline.StartBarrierAt = at
		}
	}
	if processNoVisual {
		cfg.Visual.Enabled = false
	}
	if processNoTables {
		cfg.Visual.Tables = false
	}
	if processNoImages {
		cfg.Visual.Images = false
	}
}

// fragmentStore accumulates enhanced fragments per source path while the
// visual pool runs.
type fragmentStore struct {
	mu        sync.Mutex
	fragments map[string]map[string]string
}

func (s *fragmentStore) add(sourcePath, placeholderID, fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fragments == nil {
		s.fragments = make(map[string]map[string]string)
	}
	if s.fragments[sourcePath] == nil {
		s.fragments[sourcePath] = make(map[string]string)
	}
	s.fragments[sourcePath][placeholderID] = fragment
}

func (s *fragmentStore) forPath(sourcePath string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fragments[sourcePath]
}

func buildRunner(cfg *config.Config, registry *decode.Registry, strategy document.Strategy, logger *observability.Logger) (*pipeline.Runner, *writer.Writer, *visual.Queue, *fragmentStore, error) {
	out, err := writer.New(cfg.Output.Dir, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var classifier *classify.Classifier
	if !processNoTagging {
		classifier = classify.New(classify.Thresholds{
			SkipExtractionBelow: cfg.Classify.SkipExtractionBelow,
			DeepExtractionAbove: cfg.Classify.DeepExtractionAbove,
			SpecializationAbove: cfg.Classify.SpecializationAbove,
		})
	}

	corpus, err := extract.LoadCorpus(cfg.Extract.CorpusDir, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load corpus: %w", err)
	}
	catalog := extract.DefaultCatalog()
	if cfg.Extract.PatternCatalogPath != "" {
		catalog, err = extract.LoadCatalog(cfg.Extract.PatternCatalogPath)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("load pattern catalog: %w", err)
		}
	}
	extractor, err := extract.NewExtractor(extract.Config{
		Corpus:              corpus,
		Catalog:             catalog,
		PersonMinConfidence: cfg.Extract.PersonMinConfidence,
	}, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build extractor: %w", err)
	}

	normalizer := normalize.New()
	analyzer := semantic.New(normalizer.Units(), logger)

	var (
		visuals   *visual.Queue
		fragments *fragmentStore
	)
	if cfg.Visual.Enabled {
		fragments = &fragmentStore{}
		visuals = visual.NewQueue(visual.Options{
			Workers:  cfg.Visual.Workers,
			Capacity: cfg.Visual.QueueCapacity,
			Tables:   cfg.Visual.Tables,
			Images:   cfg.Visual.Images,
			Results:  fragments.add,
		}, logger)
	}

	runner := pipeline.NewRunner(pipeline.RunnerOptions{
		Decoders:   registry,
		Fetcher:    decode.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxBodyBytes),
		Classifier: classifier,
		Extractor:  extractor,
		Normalizer: normalizer,
		Analyzer:   analyzer,
		Writer:     out,
		Visuals:    visuals,
		Strategy:   strategy,
		Timeout:    cfg.Pipeline.Timeout,
		TextOnly:   processTextOnly,
	}, logger)
	return runner, out, visuals, fragments, nil
}

// rewriteWithFragments re-renders documents whose visual elements finished
// after the write stage. Insertion is idempotent, so rewriting a document
// whose markers were already replaced is harmless.
func rewriteWithFragments(docs []*document.Document, fragments *fragmentStore, out *writer.Writer, logger *observability.Logger) {
	for _, doc := range docs {
		if !doc.Success || doc.Skipped {
			continue
		}
		got := fragments.forPath(doc.SourcePath)
		if len(got) == 0 {
			continue
		}
		for id, fragment := range got {
			doc.Fragments[id] = fragment
		}
		if err := out.Write(doc); err != nil {
			logger.Warn().Str("document", doc.SourceName).Err(err).Msg("fragment rewrite failed")
		}
	}
}
