package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/corpusforge/corpus-engine/internal/document"
	"github.com/corpusforge/corpus-engine/internal/observability"
)

// Job is one unit of input for the pool: a local path or a URL.
type Job struct {
	Path  string
	IsURL bool
}

// PoolOptions configure batch execution.
type PoolOptions struct {
	Workers int
	// StartBarrierAt, when non-zero and in the future, holds every worker
	// until the wall clock reaches it, so multi-host runs against a shared
	// source start together.
	StartBarrierAt time.Time
	// DrainTimeout bounds how long shutdown waits for in-flight documents
	// once the context is cancelled.
	DrainTimeout time.Duration
	// OnDocument, when set, is called from the collection goroutine as each
	// document reaches a terminal state. Used for progress display.
	OnDocument func(*document.Document)
}

// Pool fans jobs out to a fixed set of workers sharing one Runner. The job
// queue is bounded at twice the worker count so a slow stage exerts
// backpressure on submission instead of buffering the whole batch.
type Pool struct {
	runner *Runner
	logger *observability.Logger
	opts   PoolOptions
}

// NewPool creates a pool over the runner.
func NewPool(runner *Runner, opts PoolOptions, logger *observability.Logger) *Pool {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 120 * time.Second
	}
	return &Pool{runner: runner, logger: logger, opts: opts}
}

// Run processes the jobs and returns the documents in completion order.
// Cancelling the context stops submission; workers finish their in-flight
// document within the drain timeout or are abandoned. Jobs never started
// are reported as failed documents so every input has a terminal state.
func (p *Pool) Run(ctx context.Context, jobs []Job) []*document.Document {
	feed := make(chan Job, 2*p.opts.Workers)
	results := make(chan *document.Document, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.waitForBarrier(ctx, id)
			for job := range feed {
				if job.IsURL {
					results <- p.runner.ProcessURL(ctx, job.Path)
				} else {
					results <- p.runner.Process(ctx, job.Path)
				}
			}
		}(i)
	}

	submitted := 0
feedLoop:
	for _, job := range jobs {
		select {
		case feed <- job:
			submitted++
		case <-ctx.Done():
			break feedLoop
		}
	}
	close(feed)

	// Inputs never submitted still get a terminal failed state.
	for _, job := range jobs[submitted:] {
		doc := document.New(job.Path)
		doc.Fail(document.StageConvert, ctx.Err())
		results <- doc
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	docs := make([]*document.Document, 0, len(jobs))
	done := ctx.Done()
	var deadline <-chan time.Time // nil until draining begins
	for len(docs) < len(jobs) {
		select {
		case doc := <-results:
			docs = append(docs, doc)
			if p.opts.OnDocument != nil {
				p.opts.OnDocument(doc)
			}
		case <-done:
			// Cancellation fires once; nil the channel so the loop blocks on
			// results instead of spinning on the closed Done channel.
			done = nil
			deadline = time.After(p.opts.DrainTimeout)
		case <-deadline:
			p.logger.Warn().
				Int("completed", len(docs)).
				Int("total", len(jobs)).
				Msg("drain timeout reached, abandoning in-flight documents")
			return docs
		}
	}

	<-workersDone
	return docs
}

// waitForBarrier parks the worker until the coordinated start time.
func (p *Pool) waitForBarrier(ctx context.Context, id int) {
	at := p.opts.StartBarrierAt
	if at.IsZero() {
		return
	}
	wait := time.Until(at)
	if wait <= 0 {
		return
	}
	p.logger.WithWorker(id).Info().
		Dur("wait", wait).
		Msg("holding at start barrier")
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
