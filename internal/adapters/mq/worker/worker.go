// Package worker runs the asynchronous baseline refresh pool.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/spotter/internal/adapters/mq/queue"
	"github.com/okian/spotter/pkg/logger"
	"github.com/okian/spotter/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Refresher recomputes the baseline estimate for an image.
type Refresher interface {
	Refresh(ctx context.Context, imageID string) float64
}

// Notifier observes completed refreshes. Implementations must be fast;
// they run on the worker goroutine.
type Notifier interface {
	RefreshDone(imageID string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes refresh jobs until stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// RefreshWorker implements Worker.
type RefreshWorker struct {
	queue     Queue
	refresher Refresher
	notifier  Notifier
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewRefreshWorker creates a worker with configuration options.
func NewRefreshWorker(q Queue, r Refresher, opts ...Option) *RefreshWorker {
	w := &RefreshWorker{
		queue:     q,
		refresher: r,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *RefreshWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker, waiting for the in-flight job.
func (w *RefreshWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *RefreshWorker) process(ctx context.Context, job Job) {
	if job.ImageID == "" {
		metrics.RecordRefreshError()
		w.logger.Warn(ctx, "skipping refresh job without image id")
		return
	}

	baseline := w.refresher.Refresh(ctx, job.ImageID)
	metrics.RecordRefreshDone()
	w.logger.Debug(ctx, "baseline refreshed",
		logger.String("image_id", job.ImageID),
		logger.Float64("baseline_ms", baseline),
	)

	if w.notifier != nil {
		w.notifier.RefreshDone(job.ImageID)
	}
}

// Pool manages multiple workers over a shared queue.
type Pool struct {
	workers []*RefreshWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates workerCount workers; a non-positive count defaults to
// a multiple of the CPU count.
func NewPool(workerCount int, q Queue, r Refresher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*RefreshWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		named := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewRefreshWorker(q, r, named...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
