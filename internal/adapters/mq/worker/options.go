package worker

import (
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// KeyFunc returns the ordering key of a packet and whether it is a barrier.
type KeyFunc func(p *wire.Packet) (key string, barrier bool)

// WithKeyFunc sets how packets are sharded onto workers.
func WithKeyFunc(fn KeyFunc) PoolOption {
	return func(p *Pool) {
		if fn != nil {
			p.keyFn = fn
		}
	}
}

// WithQueueSize sets the per-worker queue capacity.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithPoolLogger sets the pool logger.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
