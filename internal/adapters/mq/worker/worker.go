// Package worker runs queued jobs on a fixed set of partitioned workers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/stomp/internal/adapters/mq/queue"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

const (
	defaultWorkerCount    = 4
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker executes jobs until its queue is closed or ctx ends.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker executes jobs from one queue, one at a time.
type InMemoryWorker struct {
	queue Queue
	name  string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue: q,
		name:  "worker",
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run drains the queue until it is closed, or returns early when ctx ends.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "job failed",
					logger.String("job", j.Name),
					logger.String("job_id", j.ID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown waits for Run to return. Close the queue first to let it drain.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

// process runs one job and turns a panic into an error.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError(j.Name, "panic")
			w.logger.Error(ctx, "job panicked",
				logger.String("job", j.Name),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if j.Run == nil {
		return ErrNilJob
	}
	if err := j.Run(ctx); err != nil {
		metrics.RecordWorkerError(j.Name, "error")
		return err
	}
	return nil
}

// Pool owns one queue per worker and routes jobs by key.
type Pool struct {
	workers []*InMemoryWorker
	queues  []*queue.InMemoryQueue

	next    atomic.Uint64
	stopped atomic.Bool
	stop    chan struct{}
	once    sync.Once

	logger logger.Logger
}

// NewPool creates workerCount workers, each with a queue of queueSize jobs.
func NewPool(workerCount, queueSize int, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queues:  make([]*queue.InMemoryQueue, workerCount),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}
	for i := range workerCount {
		name := "worker-" + strconv.Itoa(i)
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(queueSize))
		p.workers[i] = NewInMemoryWorker(p.queues[i], WithName(name), WithLogger(p.logger.Named(name)))
	}
	metrics.UpdateQueueCapacity(p.Cap())
	return p
}

// Start runs every worker and the metrics updater. Workers outlive ctx: only
// Shutdown stops them, after the queued jobs have run.
func (p *Pool) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
	go p.startMetricsUpdater(ctx)
}

// Submit hands j to the worker owning j.Key. It never blocks; false means the
// job was not accepted (pool stopped or partition full).
func (p *Pool) Submit(ctx context.Context, j queue.Job) bool {
	if p.stopped.Load() {
		return false
	}
	ok := p.queues[p.partition(j.Key)].Enqueue(ctx, j)
	if !ok {
		p.logger.Warn(ctx, "job rejected", logger.String("job", j.Name), logger.String("key", j.Key))
	}
	return ok
}

func (p *Pool) partition(key string) int {
	n := uint64(len(p.queues))
	if key == "" {
		return int(p.next.Add(1) % n)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() % n)
}

// Len returns queued jobs across all partitions.
func (p *Pool) Len() int {
	total := 0
	for _, q := range p.queues {
		total += q.Len(context.Background())
	}
	return total
}

// Cap returns total queue capacity.
func (p *Pool) Cap() int {
	total := 0
	for _, q := range p.queues {
		total += q.Cap()
	}
	return total
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return len(p.workers)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	size, capacity := p.Len(), p.Cap()
	metrics.UpdateQueueSize(size)
	if capacity > 0 {
		metrics.UpdateQueueUtilization(float64(size) / float64(capacity))
	}
}

// Shutdown stops accepting jobs, lets workers drain what is queued and waits
// for them, bounded by ctx and poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		p.stopped.Store(true)
		close(p.stop)
		for _, q := range p.queues {
			_ = q.Close()
		}
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	metrics.UpdateWorkerCount(0)
	p.updateMetrics()
	return errors.Join(errs...)
}
