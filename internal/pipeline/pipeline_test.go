package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/corpus-engine/internal/classify"
	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/extract"
	"github.com/corpusforge/corpus-engine/internal/normalize"
	"github.com/corpusforge/corpus-engine/internal/semantic"
	"github.com/corpusforge/corpus-engine/internal/writer"
)

const sampleText = "Workers must wear hard hats in construction zones. " +
	"Dr. John Smith announced the policy after an inspection. " +
	"Violation of 29 CFR 1910.147 results in a fine of $145,000.\n"

func testRunner(t *testing.T, outDir string, textOnly bool) *Runner {
	t.Helper()
	return testRunnerWithClock(t, outDir, textOnly, nil)
}

func testRunnerWithClock(t *testing.T, outDir string, textOnly bool, now func() time.Time) *Runner {
	t.Helper()

	corpus := extract.NewCorpusFromLists(map[extract.List][]string{
		extract.ListFirstNames:  {"john", "maria"},
		extract.ListLastNames:   {"smith", "chen"},
		extract.ListSafetyTerms: {"hard hats", "lockout"},
		extract.ListAgencies:    {"osha"},
	})
	extractor, err := extract.NewExtractor(extract.Config{
		Corpus:  corpus,
		Catalog: extract.DefaultCatalog(),
	}, nil)
	require.NoError(t, err)

	normalizer := normalize.New()
	out, err := writer.New(outDir, nil)
	require.NoError(t, err)

	return NewRunner(RunnerOptions{
		Classifier: classify.New(classify.DefaultThresholds()),
		Extractor:  extractor,
		Normalizer: normalizer,
		Analyzer:   semantic.New(normalizer.Units(), nil),
		Writer:     out,
		Strategy:   document.StrategyFast,
		TextOnly:   textOnly,
		Now:        now,
	}, nil)
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunner_ProcessEndToEnd(t *testing.T) {
	outDir := t.TempDir()
	r := testRunner(t, outDir, false)
	src := writeSource(t, "notice.txt", sampleText)

	doc := r.Process(context.Background(), src)

	require.True(t, doc.Success, "error: %s", doc.Error)
	require.NoError(t, doc.VerifySpans())

	// Every stage records a timing, including write.
	for _, stage := range document.Stages() {
		_, ok := doc.StageTimings[stage]
		assert.True(t, ok, "missing timing for stage %s", stage)
	}

	assert.NotEmpty(t, doc.RawEntities[document.KindSafetyTerm])
	assert.NotEmpty(t, doc.RawEntities[document.KindMoney])
	assert.NotEmpty(t, doc.RawEntities[document.KindRegulation])
	require.NotEmpty(t, doc.RawEntities[document.KindPerson])
	assert.Equal(t, "Dr. John Smith", doc.RawEntities[document.KindPerson][0].Text)

	assert.NotEmpty(t, doc.NormalizedEntities)
	assert.NotEmpty(t, doc.SemanticFacts)
	require.NotNil(t, doc.Classification)

	for _, name := range []string{"notice.md", "notice_semantic.json"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, "expected output file %s", name)
	}
}

func TestRunner_ShortTextStillExtracts(t *testing.T) {
	// Texts below the classifier's extraction threshold keep their entities;
	// the routing hint is advisory.
	outDir := t.TempDir()
	r := testRunner(t, outDir, false)
	src := writeSource(t, "short.txt", "Workers must wear hard hats.\n")

	doc := r.Process(context.Background(), src)

	require.True(t, doc.Success)
	assert.NotEmpty(t, doc.RawEntities[document.KindSafetyTerm])
}

func TestRunner_UnsupportedExtensionFailsAtConvert(t *testing.T) {
	outDir := t.TempDir()
	r := testRunner(t, outDir, false)
	src := writeSource(t, "legacy.docx", "binary-ish payload")

	doc := r.Process(context.Background(), src)

	require.False(t, doc.Success)
	assert.Equal(t, document.StageConvert, doc.FailedStage)
	assert.NotEmpty(t, doc.Error)

	// Failed documents still pass through write for a terminal timing, but
	// produce no output files.
	_, ok := doc.StageTimings[document.StageWrite]
	assert.True(t, ok)
	_, err := os.Stat(filepath.Join(outDir, "legacy.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunner_Determinism(t *testing.T) {
	r := testRunner(t, t.TempDir(), false)
	src := writeSource(t, "notice.txt", sampleText)

	first := r.Process(context.Background(), src)
	second := r.Process(context.Background(), src)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, first.RawEntities, second.RawEntities)
	assert.Equal(t, first.NormalizedEntities, second.NormalizedEntities)
	assert.Equal(t, first.SemanticFacts, second.SemanticFacts)
}

func TestRunner_OutputsAreByteIdentical(t *testing.T) {
	// With a fixed clock the only volatile fields (converted_at and stage
	// timings) are pinned, so two runs emit identical bytes.
	clock := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	src := writeSource(t, "notice.txt", sampleText)

	dirs := [2]string{t.TempDir(), t.TempDir()}
	for _, dir := range dirs {
		doc := testRunnerWithClock(t, dir, false, clock).Process(context.Background(), src)
		require.True(t, doc.Success, "error: %s", doc.Error)
	}

	for _, name := range []string{"notice.md", "notice_semantic.json"} {
		first, err := os.ReadFile(filepath.Join(dirs[0], name))
		require.NoError(t, err)
		second, err := os.ReadFile(filepath.Join(dirs[1], name))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second), "%s differs between runs", name)
	}
}

func TestRunner_EmptyFileIsSkipped(t *testing.T) {
	outDir := t.TempDir()
	r := testRunner(t, outDir, false)
	src := writeSource(t, "hollow.txt", "")

	doc := r.Process(context.Background(), src)

	assert.True(t, doc.Skipped)
	assert.Equal(t, "file empty", doc.SkipReason)
	assert.True(t, doc.Success, "an empty input is not a failure")
	assert.Empty(t, doc.Error)

	// No output files of any kind.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_TextOnlySkipsAnalysis(t *testing.T) {
	outDir := t.TempDir()
	r := testRunner(t, outDir, true)
	src := writeSource(t, "plain.txt", sampleText)

	doc := r.Process(context.Background(), src)

	require.True(t, doc.Success)
	assert.Nil(t, doc.Classification)
	assert.Empty(t, doc.RawEntities)
	assert.Empty(t, doc.SemanticFacts)

	raw, err := os.ReadFile(filepath.Join(outDir, "plain.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Workers must wear hard hats")
}

func TestRunner_AttributeGrowthIsMonotone(t *testing.T) {
	r := testRunner(t, t.TempDir(), false)
	src := writeSource(t, "notice.txt", sampleText)

	doc := r.Process(context.Background(), src)
	require.True(t, doc.Success)

	keys := doc.AttributeKeys()
	for _, want := range []string{
		"markdown", "word_count", "classification",
		"raw_entities", "normalized_entities", "semantic_facts",
	} {
		assert.Contains(t, keys, want)
	}
}

func TestPool_ProcessesBatch(t *testing.T) {
	outDir := t.TempDir()
	r := testRunner(t, outDir, false)

	srcDir := t.TempDir()
	jobs := make([]Job, 0, 3)
	for _, name := range []string{"a.txt", "b.txt", "c.docx"} {
		path := filepath.Join(srcDir, name)
		require.NoError(t, os.WriteFile(path, []byte(sampleText), 0o644))
		jobs = append(jobs, Job{Path: path})
	}

	var seen atomic.Int64
	pool := NewPool(r, PoolOptions{
		Workers:    2,
		OnDocument: func(*document.Document) { seen.Add(1) },
	}, nil)

	docs := pool.Run(context.Background(), jobs)

	require.Len(t, docs, 3)
	assert.Equal(t, int64(3), seen.Load())

	succeeded := 0
	for _, doc := range docs {
		if doc.Success {
			succeeded++
		} else {
			assert.Equal(t, document.StageConvert, doc.FailedStage)
		}
	}
	assert.Equal(t, 2, succeeded)
}

func TestPool_CancelledContextFailsUnsubmittedJobs(t *testing.T) {
	r := testRunner(t, t.TempDir(), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{Path: "/nonexistent/x.txt"}, {Path: "/nonexistent/y.txt"}}
	pool := NewPool(r, PoolOptions{Workers: 1, DrainTimeout: 5 * time.Second}, nil)

	docs := pool.Run(ctx, jobs)

	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.False(t, doc.Success)
	}
}

func TestPool_DrainCollectsInFlightAfterCancellation(t *testing.T) {
	r := testRunner(t, t.TempDir(), false)

	srcDir := t.TempDir()
	jobs := make([]Job, 0, 4)
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		path := filepath.Join(srcDir, name)
		require.NoError(t, os.WriteFile(path, []byte(sampleText), 0o644))
		jobs = append(jobs, Job{Path: path})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	pool := NewPool(r, PoolOptions{
		Workers:      1,
		DrainTimeout: 30 * time.Second,
		OnDocument:   func(*document.Document) { once.Do(cancel) },
	}, nil)

	start := time.Now()
	docs := pool.Run(ctx, jobs)

	// Cancellation mid-batch still drains every submitted job to a terminal
	// state, long before the drain timeout would fire.
	require.Len(t, docs, 4)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestBuildReport(t *testing.T) {
	ok := document.New("/in/good.txt")
	ok.WordCount = 12
	ok.RecordTiming(document.StageConvert, time.Millisecond)

	bad := document.New("/in/bad.docx")
	bad.Fail(document.StageConvert, os.ErrInvalid)

	empty := document.New("/in/hollow.txt")
	empty.Skip("file empty")

	report := BuildReport([]*document.Document{ok, bad, empty}, document.StrategyFast, 4, 250*time.Millisecond)

	assert.Equal(t, 3, report.TotalDocuments)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "fast", report.Strategy)
	assert.Equal(t, 4, report.Workers)
	require.Len(t, report.Documents, 3)
	assert.Equal(t, "good.txt", report.Documents[0].Source)
	assert.Equal(t, "convert", report.Documents[1].FailedStage)
	assert.True(t, report.Documents[2].Skipped)
	assert.Equal(t, "file empty", report.Documents[2].SkipReason)

	dir := t.TempDir()
	path, err := report.Write(dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "processing_report_"))
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}
