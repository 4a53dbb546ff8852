package announce

import (
	"time"

	"github.com/okian/tarelay/internal/adapters/conn"
	"github.com/okian/tarelay/pkg/logger"
)

// Option applies a configuration option to the Announcer.
type Option func(*Announcer)

// WithMaxRetries bounds the retries after the first attempt.
func WithMaxRetries(n uint64) Option {
	return func(a *Announcer) { a.maxRetries = n }
}

// WithBackoff sets the initial and maximum delay between attempts.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(a *Announcer) {
		if initial > 0 {
			a.initialBackoff = initial
		}
		if maxInterval > 0 {
			a.maxBackoff = maxInterval
		}
	}
}

// WithAttemptTimeout bounds one open, send, close attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(a *Announcer) {
		if d > 0 {
			a.attemptTimeout = d
		}
	}
}

// WithConnOptions passes options to every outbound conn.Dial.
func WithConnOptions(opts ...conn.Option) Option {
	return func(a *Announcer) { a.connOpts = append(a.connOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Announcer) {
		if l != nil {
			a.log = l
		}
	}
}
