// Package worker drains queued refresh requests and runs them through the
// standings aggregator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/standings"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// ErrQueueDrained is returned by Pool.Serve when every worker stopped
// because the queue was closed.
var ErrQueueDrained = errors.New("refresh queue drained")

// Request is what workers read off the queue.
type Request = model.RefreshRequest

// Refresher produces a new snapshot for a tournament.
type Refresher interface {
	Refresh(ctx context.Context, tournamentID string, opts standings.RefreshOptions) (*model.Snapshot, error)
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Request
}

// Worker processes refresh requests.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the request in hand completes.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a channel-backed queue.
type InMemoryWorker struct {
	queue     Queue
	refresher Refresher
	deduper   dedupe.Deduper
	name      string

	processed atomic.Int64
	failed    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, refresher Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		refresher: refresher,
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
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := w.process(ctx, req); err != nil {
				w.failed.Add(1)
			}
			w.processed.Add(1)
		}
	}
}

// Shutdown stops the worker and waits for the loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed reports how many requests this worker has handled.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed reports how many handled requests ended in an error.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, req Request) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	// Release the key first so a request arriving during this refresh is
	// accepted and picks up anything that changed in the meantime.
	if w.deduper != nil {
		w.deduper.Unrecord(ctx, req.Key())
	}

	snap, err := w.refresher.Refresh(ctx, req.TournamentID, standings.RefreshOptions{
		Round:     req.Round,
		FetchLive: req.FetchLive,
	})

	fields := []logger.Field{
		logger.String("request_id", req.RequestID),
		logger.String("tournament", req.TournamentID),
		logger.String("source", req.Source),
	}
	var rff *standings.RosterFetchFailure
	switch {
	case err == nil:
		w.logger.Debug(ctx, "refresh completed",
			append(fields, logger.Uint64("version", snap.Version))...)
		return nil
	case errors.Is(err, standings.ErrRefreshInProgress):
		w.logger.Debug(ctx, "refresh already running", fields...)
		return nil
	case errors.As(err, &rff):
		metrics.RecordWorkerError()
		w.logger.Warn(ctx, rff.Message(), append(fields, logger.Error(rff.Err))...)
	default:
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "refresh failed", append(fields, logger.Error(err))...)
	}
	return fmt.Errorf("refresh %s: %w", req.TournamentID, err)
}

// Pool manages multiple workers reading from one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu      sync.Mutex
	running bool

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. Worker options apply to
// every worker in the pool.
func NewPool(workerCount int, queue Queue, refresher Refresher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, refresher, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of requests handled across all workers.
func (p *Pool) Processed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed returns the number of handled requests that ended in an error.
func (p *Pool) Failed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Serve runs every worker until ctx ends or the queue is closed and
// drained. It returns ErrQueueDrained in the latter case.
func (p *Pool) Serve(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("worker pool already running")
	}
	p.running = true
	workers := p.workers
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		// Fresh workers so a supervisor restart gets live loops.
		for i, w := range p.workers {
			p.workers[i] = w.clone()
		}
		p.mu.Unlock()
	}()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(workers)))
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return ErrQueueDrained
}

// Shutdown closes the queue when it supports closing and lets the workers
// drain what is buffered. Workers still busy when ctx or the pool timeout
// ends are stopped after their current request.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	p.mu.Lock()
	workers := append([]*InMemoryWorker(nil), p.workers...)
	running := p.running
	p.mu.Unlock()
	if !running {
		return nil
	}

	var errs []error
	for i, w := range workers {
		select {
		case <-w.done:
			continue
		case <-shutdownCtx.Done():
		}
		stopCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		if err := w.Shutdown(stopCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
		stop()
	}
	return errors.Join(errs...)
}

// clone returns a stopped worker's configuration as a fresh worker that
// keeps its counters.
func (w *InMemoryWorker) clone() *InMemoryWorker {
	c := &InMemoryWorker{
		queue:     w.queue,
		refresher: w.refresher,
		deduper:   w.deduper,
		name:      w.name,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    w.logger,
	}
	c.processed.Store(w.processed.Load())
	c.failed.Store(w.failed.Load())
	return c
}
