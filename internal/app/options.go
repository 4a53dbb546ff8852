package service

import (
	"time"

	"github.com/okian/tarelay/internal/adapters/conn"
	"github.com/okian/tarelay/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithNames sets the display names of the inbound and announce connections.
func WithNames(rx, tx string) Option {
	return func(s *Service) {
		if rx != "" {
			s.rxName = rx
		}
		if tx != "" {
			s.txName = tx
		}
	}
}

// WithTransmitMarker sets the name fragment that marks this relay's own
// announce connections.
func WithTransmitMarker(marker string) Option {
	return func(s *Service) {
		if marker != "" {
			s.marker = marker
		}
	}
}

// WithClientVersion sets the version sent in the connect handshake.
func WithClientVersion(v int32) Option {
	return func(s *Service) {
		if v > 0 {
			s.clientVersion = v
		}
	}
}

// WithWorkerCount sets the number of reconciliation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of each worker queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many packet ids are remembered. Sizes below one
// keep the default.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithAnnounceRetry sets the re-announcement retry policy.
func WithAnnounceRetry(maxRetries uint64, initial, maxBackoff time.Duration) Option {
	return func(s *Service) {
		s.announceRetries = maxRetries
		if initial > 0 {
			s.announceInitial = initial
		}
		if maxBackoff > 0 {
			s.announceMax = maxBackoff
		}
	}
}

// WithReconnectMaxBackoff caps the delay between reconnect attempts.
func WithReconnectMaxBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.reconnectMax = d
		}
	}
}

// WithTelemetryDir archives every accepted realtime score below dir.
func WithTelemetryDir(dir string) Option {
	return func(s *Service) { s.telemetryDir = dir }
}

// WithFailOnUnimplemented stops Run on packet kinds that cannot be reconciled.
func WithFailOnUnimplemented(fail bool) Option {
	return func(s *Service) { s.failOnUnimplemented = fail }
}

// WithConnOptions passes extra options to every origin connection.
func WithConnOptions(opts ...conn.Option) Option {
	return func(s *Service) { s.connOpts = append(s.connOpts, opts...) }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
