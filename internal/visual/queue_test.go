package visual

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/corpus-engine/internal/decode"
	"github.com/corpusforge/corpus-engine/internal/document"
)

func TestInsertFragment_Idempotent(t *testing.T) {
	md := "intro\n\n" + Marker("tbl-1") + "\n\noutro\n"

	once := InsertFragment(md, "tbl-1", "| a |\n| --- |")
	assert.NotContains(t, once, Marker("tbl-1"))
	assert.Contains(t, once, "| a |")

	// The marker is consumed on first insertion; repeating is a no-op.
	twice := InsertFragment(once, "tbl-1", "| a |\n| --- |")
	assert.Equal(t, once, twice)
}

func TestInsertAll_LeavesUnmatchedMarkers(t *testing.T) {
	md := Marker("a") + "\n" + Marker("b") + "\n"
	out := InsertAll(md, map[string]string{"a": "TABLE-A"})

	assert.Contains(t, out, "TABLE-A")
	assert.Contains(t, out, Marker("b"))
}

type captureResults struct {
	mu        sync.Mutex
	fragments map[string]string
}

func (c *captureResults) add(_, id, fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fragments[id] = fragment
}

func TestQueue_DrainsWithFallbackEnhancer(t *testing.T) {
	results := &captureResults{fragments: map[string]string{}}
	q := NewQueue(Options{
		Workers: 2,
		Tables:  true,
		Images:  true,
		Results: results.add,
	}, nil)

	doc := document.New("/tmp/in/report.pdf")
	queued := q.EnqueueDocument(doc, []decode.Placeholder{
		{ID: "tbl-1", Kind: decode.PlaceholderTable, Page: 2},
		{ID: "img-1", Kind: decode.PlaceholderImage, Page: 3},
	})
	require.Equal(t, 2, queued)
	require.NoError(t, q.Close(5*time.Second))

	results.mu.Lock()
	defer results.mu.Unlock()
	assert.Equal(t, "*[table on page 2]*", results.fragments["tbl-1"])
	assert.Equal(t, "*[image on page 3]*", results.fragments["img-1"])
}

func TestQueue_DisabledKindsAreSkipped(t *testing.T) {
	q := NewQueue(Options{Workers: 1, Tables: false, Images: true}, nil)
	defer q.Close(time.Second)

	doc := document.New("/tmp/in/report.pdf")
	queued := q.EnqueueDocument(doc, []decode.Placeholder{
		{ID: "tbl-1", Kind: decode.PlaceholderTable, Page: 1},
		{ID: "img-1", Kind: decode.PlaceholderImage, Page: 1},
		{ID: "frm-1", Kind: decode.PlaceholderFormula, Page: 1},
	})
	// Formulas are always eligible; tables are gated off here.
	assert.Equal(t, 2, queued)
}

type orderEnhancer struct {
	mu  sync.Mutex
	ids []string
}

func (o *orderEnhancer) Enhance(_ context.Context, job Job) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ids = append(o.ids, job.PlaceholderID)
	return "x", nil
}

func TestQueue_BatchesByKindWithTablesFirst(t *testing.T) {
	enh := &orderEnhancer{}
	q := NewQueue(Options{
		Workers:  1,
		Capacity: 8,
		Tables:   true,
		Images:   true,
		Enhancer: enh,
	}, nil)

	doc := document.New("/tmp/in/mixed.pdf")
	queued := q.EnqueueDocument(doc, []decode.Placeholder{
		{ID: "img-1", Kind: decode.PlaceholderImage, Page: 1},
		{ID: "tbl-2", Kind: decode.PlaceholderTable, Page: 5},
		{ID: "img-2", Kind: decode.PlaceholderImage, Page: 4},
		{ID: "tbl-1", Kind: decode.PlaceholderTable, Page: 2},
	})
	require.Equal(t, 4, queued)
	require.NoError(t, q.Close(5*time.Second))

	enh.mu.Lock()
	defer enh.mu.Unlock()
	assert.Equal(t, []string{"tbl-1", "tbl-2", "img-1", "img-2"}, enh.ids)
}

type stuckEnhancer struct {
	release chan struct{}
}

func (s stuckEnhancer) Enhance(_ context.Context, _ Job) (string, error) {
	<-s.release
	return "", errors.New("cancelled")
}

func TestQueue_CloseTimesOutOnStuckWork(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(Options{
		Workers:  1,
		Tables:   true,
		Enhancer: stuckEnhancer{release: release},
	}, nil)

	doc := document.New("/tmp/in/slow.pdf")
	q.EnqueueDocument(doc, []decode.Placeholder{
		{ID: "tbl-1", Kind: decode.PlaceholderTable, Page: 1},
	})

	err := q.Close(50 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drain timed out")
	close(release)
}

func TestQueue_ErrorKeepsPlaceholder(t *testing.T) {
	results := &captureResults{fragments: map[string]string{}}
	q := NewQueue(Options{
		Workers:  1,
		Tables:   true,
		Enhancer: failingEnhancer{},
		Results:  results.add,
	}, nil)

	doc := document.New("/tmp/in/bad.pdf")
	q.EnqueueDocument(doc, []decode.Placeholder{
		{ID: "tbl-1", Kind: decode.PlaceholderTable, Page: 1},
	})
	require.NoError(t, q.Close(5*time.Second))

	results.mu.Lock()
	defer results.mu.Unlock()
	assert.Empty(t, results.fragments)
}

type failingEnhancer struct{}

func (failingEnhancer) Enhance(_ context.Context, _ Job) (string, error) {
	return "", errors.New("render backend unavailable")
}
