// Package worker reconciles packets in parallel while keeping packets about
// the same entity in receipt order.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/tarelay/internal/adapters/mq/queue"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/okian/tarelay/pkg/metrics"
)

const (
	defaultQueueSize      = 256
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Handler processes one packet. A returned error is fatal to the pool's owner.
type Handler interface {
	Handle(ctx context.Context, p *wire.Packet) error
}

// Worker drains one queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)
}

// InMemoryWorker runs a Handler over the jobs of a single queue, one at a time.
type InMemoryWorker struct {
	queue   queue.Queue
	handler Handler
	name    string
	onDone  func(error)

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a worker over q.
func NewInMemoryWorker(q queue.Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		handler: h,
		name:    "worker",
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes jobs until the queue is closed and drained or ctx is done.
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
			err := w.handler.Handle(ctx, j.Packet)
			if err != nil {
				metrics.RecordErrorByComponent("worker", "handler_error")
				w.logger.Error(ctx, "packet handler failed",
					logger.String("packet_id", j.Packet.ID),
					logger.Duration("queued", time.Since(j.Enqueued)),
					logger.Error(err),
				)
			}
			if w.onDone != nil {
				w.onDone(err)
			}
		}
	}
}

// Pool shards packets by entity key over a fixed set of workers, each with
// its own FIFO queue. Barrier packets wait for all in-flight work and then
// run on the submitting goroutine.
//
// Submit must be called from a single goroutine.
type Pool struct {
	workers   []*InMemoryWorker
	queues    []*queue.InMemoryQueue
	handler   Handler
	keyFn     KeyFunc
	queueSize int

	inflight  sync.WaitGroup
	errs      chan error
	rr        atomic.Uint64
	processed atomic.Int64
	closing   sync.Once

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers around h. A count below one
// uses runtime.NumCPU.
func NewPool(workerCount int, h Handler, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		handler:   h,
		keyFn:     func(*wire.Packet) (string, bool) { return "", false },
		queueSize: defaultQueueSize,
		errs:      make(chan error, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}

	p.workers = make([]*InMemoryWorker, workerCount)
	p.queues = make([]*queue.InMemoryQueue, workerCount)
	for i := 0; i < workerCount; i++ {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(p.queueSize))
		name := "worker-" + strconv.Itoa(i)
		p.workers[i] = NewInMemoryWorker(p.queues[i], h,
			WithName(name),
			WithLogger(p.logger.Named(name)),
		)
		p.workers[i].onDone = p.finish
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateQueueCapacity(workerCount * p.queueSize)
	metrics.UpdateQueueSize(0)
	return p
}

func (p *Pool) finish(err error) {
	p.processed.Add(1)
	if err != nil {
		select {
		case p.errs <- err:
		default:
		}
	}
	p.inflight.Done()
}

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// Submit hands pkt to the worker that owns its key, blocking while that
// worker's queue is full. Barrier packets are handled before Submit returns
// and their handler error is returned directly.
func (p *Pool) Submit(ctx context.Context, pkt *wire.Packet) error {
	key, barrier := p.keyFn(pkt)
	if barrier {
		if err := p.Wait(ctx); err != nil {
			return err
		}
		p.processed.Add(1)
		return p.handler.Handle(ctx, pkt)
	}

	q := p.queues[p.shard(key)]
	j := queue.Job{Packet: pkt, Enqueued: time.Now()}
	p.inflight.Add(1)
	if !q.Enqueue(ctx, j) {
		if err := q.EnqueueWait(ctx, j); err != nil {
			p.inflight.Done()
			return fmt.Errorf("submit packet %s: %w", pkt.ID, err)
		}
	}
	metrics.UpdateQueueSize(p.Len())
	return nil
}

func (p *Pool) shard(key string) int {
	n := uint64(len(p.queues))
	if key == "" {
		return int(p.rr.Add(1) % n)
	}
	return int(xxhash.Sum64String(key) % n)
}

// Wait blocks until every submitted job has been handled or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Errors delivers handler errors from workers. Only the first pending error
// is kept.
func (p *Pool) Errors() <-chan error { return p.errs }

// Len returns the number of queued jobs across all workers.
func (p *Pool) Len() int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(context.Background())
	}
	return n
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many packets have been handled.
func (p *Pool) Processed() int64 { return p.processed.Load() }

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(p.Len())
		}
	}
}

// Shutdown closes the queues and waits for workers to drain them. No Submit
// may be in progress.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closing.Do(func() {
		for _, q := range p.queues {
			if err := q.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateQueueSize(0)
	return nil
}
