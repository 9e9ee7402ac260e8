// Package visual manages deferred enhancement of non-text document elements.
// Tables, images, and other placeholders decoded in stage 1 are queued here
// and processed by a separate bounded pool; results land in the document's
// fragment map keyed by placeholder id.
package visual

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corpusforge/corpus-engine/internal/decode"
	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/observability"
)

// Job is one visual element awaiting enhancement.
type Job struct {
	SourcePath       string
	PlaceholderID    string
	Kind             decode.PlaceholderKind
	Page             int
	Priority         int
	EstimatedSeconds float64
}

// perElementEstimate gives rough processing estimates per element kind,
// used for queue reporting.
var perElementEstimate = map[decode.PlaceholderKind]float64{
	decode.PlaceholderTable:   2.5,
	decode.PlaceholderImage:   4.0,
	decode.PlaceholderFormula: 1.5,
	decode.PlaceholderChart:   4.0,
	decode.PlaceholderDiagram: 4.0,
}

// Marker returns the inline token a decoder leaves in the Markdown where a
// visual element was removed. Fragment insertion replaces this token.
func Marker(id string) string {
	return "<!-- visual:" + id + " -->"
}

// InsertFragment replaces the placeholder marker with the enhanced fragment.
// Insertion is idempotent: once replaced, the marker is gone and a second
// call with the same id leaves the text unchanged.
func InsertFragment(markdown, id, fragment string) string {
	return strings.ReplaceAll(markdown, Marker(id), fragment)
}

// InsertAll applies every fragment in the map. Markers without a fragment
// stay in place.
func InsertAll(markdown string, fragments map[string]string) string {
	ids := make([]string, 0, len(fragments))
	for id := range fragments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		markdown = InsertFragment(markdown, id, fragments[id])
	}
	return markdown
}

// Enhancer renders one visual element to a Markdown fragment.
type Enhancer interface {
	Enhance(ctx context.Context, job Job) (string, error)
}

// Queue is a bounded multi-producer multi-consumer job queue with its own
// worker pool. Results are written back to documents through a callback so
// the queue never holds document references.
type Queue struct {
	jobs     chan Job
	enhancer Enhancer
	logger   *observability.Logger

	tables bool
	images bool

	mu      sync.Mutex
	pending int
	done    chan struct{}

	wg      sync.WaitGroup
	results func(sourcePath, placeholderID, fragment string)
}

// Options configure queue construction.
type Options struct {
	Workers  int
	Capacity int
	Tables   bool
	Images   bool
	Enhancer Enhancer
	// Results receives each finished fragment. Must be safe for concurrent
	// use.
	Results func(sourcePath, placeholderID, fragment string)
}

// NewQueue starts the visual worker pool.
func NewQueue(opts Options, logger *observability.Logger) *Queue {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Capacity < 1 {
		opts.Capacity = 2 * opts.Workers
	}
	if opts.Enhancer == nil {
		opts.Enhancer = FallbackEnhancer{}
	}
	q := &Queue{
		jobs:     make(chan Job, opts.Capacity),
		enhancer: opts.Enhancer,
		logger:   logger,
		tables:   opts.Tables,
		images:   opts.Images,
		done:     make(chan struct{}),
		results:  opts.Results,
	}
	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// EnqueueDocument queues every eligible placeholder from the document.
// Elements of disabled kinds are skipped. Jobs are submitted batched by kind,
// highest priority first and pages in order, so an enhancer backend sees one
// document's tables together, then its figures. Returns the number queued.
func (q *Queue) EnqueueDocument(doc *document.Document, placeholders []decode.Placeholder) int {
	batch := make([]Job, 0, len(placeholders))
	for _, p := range placeholders {
		if !q.eligible(p.Kind) {
			continue
		}
		batch = append(batch, Job{
			SourcePath:       doc.SourcePath,
			PlaceholderID:    p.ID,
			Kind:             p.Kind,
			Page:             p.Page,
			Priority:         priorityFor(p.Kind),
			EstimatedSeconds: perElementEstimate[p.Kind],
		})
	}
	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].Priority != batch[j].Priority {
			return batch[i].Priority > batch[j].Priority
		}
		if batch[i].Kind != batch[j].Kind {
			return batch[i].Kind < batch[j].Kind
		}
		return batch[i].Page < batch[j].Page
	})
	for _, job := range batch {
		q.mu.Lock()
		q.pending++
		q.mu.Unlock()
		q.jobs <- job
	}
	return len(batch)
}

func (q *Queue) eligible(kind decode.PlaceholderKind) bool {
	switch kind {
	case decode.PlaceholderTable:
		return q.tables
	case decode.PlaceholderImage, decode.PlaceholderChart, decode.PlaceholderDiagram:
		return q.images
	default:
		return true
	}
}

// priorityFor ranks tables above figures: table content feeds entity
// extraction directly.
func priorityFor(kind decode.PlaceholderKind) int {
	if kind == decode.PlaceholderTable {
		return 1
	}
	return 0
}

// Close stops accepting jobs and waits up to drainTimeout for in-flight work
// to finish. Jobs still queued after the timeout are dropped with a warning.
func (q *Queue) Close(drainTimeout time.Duration) error {
	close(q.jobs)

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(drainTimeout):
		q.mu.Lock()
		remaining := q.pending
		q.mu.Unlock()
		q.logger.Warn().Int("remaining", remaining).Msg("visual queue drain timed out")
		return fmt.Errorf("visual queue drain timed out with %d jobs remaining", remaining)
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log := q.logger.WithWorker(id)
	for job := range q.jobs {
		fragment, err := q.enhancer.Enhance(context.Background(), job)
		if err != nil {
			log.Warn().
				Str("placeholder", job.PlaceholderID).
				Str("kind", string(job.Kind)).
				Err(err).
				Msg("visual enhancement failed, keeping placeholder")
			fragment = ""
		}
		if fragment != "" && q.results != nil {
			q.results(job.SourcePath, job.PlaceholderID, fragment)
		}
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
	}
}

// FallbackEnhancer emits a descriptive stub fragment. It stands in where no
// rendering backend is configured, so pipelines without one still produce
// complete documents.
type FallbackEnhancer struct{}

// Enhance renders the placeholder as a bracketed description.
func (FallbackEnhancer) Enhance(_ context.Context, job Job) (string, error) {
	return fmt.Sprintf("*[%s on page %d]*", strings.ToLower(string(job.Kind)), job.Page), nil
}
