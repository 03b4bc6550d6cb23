// Package worker runs recalculation jobs: fetch a round's raw scores,
// run the calculation pass, and hand the result to the sink for
// placement persistence and advancement processing.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/feisworks/feispoints/internal/domain/model"
	"github.com/feisworks/feispoints/pkg/logger"
	"github.com/feisworks/feispoints/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = model.RecalcJob

// ScoreSource supplies the raw score set a job recomputes from.
type ScoreSource interface {
	RawScores(ctx context.Context, roundID model.RoundID) ([]model.RawScore, error)
}

// Calculator runs one full calculation pass.
type Calculator interface {
	CalculateRound(ctx context.Context, roundID model.RoundID, scores []model.RawScore) (model.RoundResult, error)
}

// Sink consumes a computed round result, typically recording it as the
// latest published artifact for the round.
type Sink interface {
	Consume(ctx context.Context, result model.RoundResult, job Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes recalculation jobs until stopped.
type Worker struct {
	queue  Queue
	source ScoreSource
	calc   Calculator
	sink   Sink
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker's name for logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a worker with configuration options.
func New(q Queue, source ScoreSource, calc Calculator, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		source:   source,
		calc:     calc,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) {
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
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "recalculation failed",
					logger.String("round", string(job.RoundID)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process handles a single recalculation job.
func (w *Worker) process(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	scores, err := w.source.RawScores(ctx, job.RoundID)
	if err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("fetch raw scores for round %s: %w", job.RoundID, err)
	}

	calcStart := time.Now()
	result, err := w.calc.CalculateRound(ctx, job.RoundID, scores)
	metrics.RecordCalculationLatency(float64(time.Since(calcStart).Milliseconds()))
	if err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("calculate round %s: %w", job.RoundID, err)
	}
	metrics.RecordCalculationPass()

	if err := w.sink.Consume(ctx, result, job); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("consume result for round %s: %w", job.RoundID, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*Worker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a worker pool of workerCount workers.
func NewPool(workerCount int, q Queue, source ScoreSource, calc Calculator, sink Sink) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*Worker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = New(q, source, calc, sink, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and waits for all workers to drain.
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
	return nil
}
