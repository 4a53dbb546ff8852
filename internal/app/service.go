// Package service runs the relay: it keeps the inbound origin connection
// alive and feeds every packet through reconciliation.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/okian/tarelay/internal/adapters/announce"
	"github.com/okian/tarelay/internal/adapters/conn"
	workerpool "github.com/okian/tarelay/internal/adapters/mq/worker"
	"github.com/okian/tarelay/internal/adapters/notify"
	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/adapters/telemetry"
	"github.com/okian/tarelay/internal/domain/dedupe"
	"github.com/okian/tarelay/internal/domain/dispatch"
	"github.com/okian/tarelay/internal/domain/reconcile"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/okian/tarelay/pkg/metrics"
)

const (
	reconnectInitialBackoff = 500 * time.Millisecond
	poolShutdownTimeout     = 10 * time.Second
)

// ErrFatal marks a failure that stops the relay.
var ErrFatal = errors.New("relay stopped")

// Service owns the inbound connection and every component behind it.
type Service struct {
	uri                 string
	rxName              string
	txName              string
	marker              string
	clientVersion       int32
	workerCount         int
	queueSize           int
	dedupeSize          int
	announceRetries     uint64
	announceInitial     time.Duration
	announceMax         time.Duration
	reconnectMax        time.Duration
	telemetryDir        string
	failOnUnimplemented bool
	connOpts            []conn.Option

	store      *repository.MemoryStore
	deduper    dedupe.Deduper
	broker     *notify.Broker
	engine     *reconcile.Engine
	dispatcher *dispatch.Dispatcher
	pool       *workerpool.Pool

	dialOpts   []conn.Option
	ran        atomic.Bool
	running    atomic.Bool
	connected  atomic.Bool
	received   atomic.Int64
	reconnects atomic.Int64
	startedAt  atomic.Int64

	logger logger.Logger
}

// New builds a Service for the origin at uri. The store and broker exist as
// soon as New returns; nothing connects until Run.
func New(ctx context.Context, uri string, opts ...Option) (*Service, error) {
	s := &Service{
		uri:             uri,
		rxName:          "TA-Relay-RX",
		txName:          "TA-Relay-TX",
		marker:          reconcile.DefaultTransmitMarker,
		clientVersion:   conn.DefaultClientVersion,
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		dedupeSize:      4096,
		announceRetries: 3,
		announceInitial: 200 * time.Millisecond,
		announceMax:     2 * time.Second,
		reconnectMax:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("relay")
	}

	s.store = repository.NewMemoryStore(ctx)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.broker = notify.NewBroker()

	s.dialOpts = append([]conn.Option{
		conn.WithClientVersion(s.clientVersion),
		conn.WithLogger(s.logger.Named("conn")),
	}, s.connOpts...)

	announcer := announce.New(s.uri, s.txName,
		announce.WithMaxRetries(s.announceRetries),
		announce.WithBackoff(s.announceInitial, s.announceMax),
		announce.WithConnOptions(s.dialOpts...),
		announce.WithLogger(s.logger.Named("announce")),
	)
	engineOpts := []reconcile.Option{
		reconcile.WithAnnouncer(announcer),
		reconcile.WithTransmitMarker(s.marker),
		reconcile.WithLogger(s.logger.Named("reconcile")),
	}
	if s.telemetryDir != "" {
		archive, err := telemetry.New(s.telemetryDir, telemetry.WithLogger(s.logger.Named("telemetry")))
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, reconcile.WithScoreSink(archive))
	}
	s.engine = reconcile.NewEngine(s.store, engineOpts...)

	s.dispatcher = dispatch.NewDispatcher(s.engine,
		dispatch.WithDeduper(s.deduper),
		dispatch.WithNotifier(s.broker),
		dispatch.WithFailOnUnimplemented(s.failOnUnimplemented),
		dispatch.WithLogger(s.logger.Named("dispatch")),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.dispatcher,
		workerpool.WithKeyFunc(dispatch.EntityKey),
		workerpool.WithQueueSize(s.queueSize),
		workerpool.WithPoolLogger(s.logger.Named("workers")),
	)
	return s, nil
}

// Store returns the mirrored state.
func (s *Service) Store() *repository.MemoryStore { return s.store }

// Broker returns the change notification broker.
func (s *Service) Broker() *notify.Broker { return s.broker }

// Connected reports whether the inbound connection is up.
func (s *Service) Connected() bool { return s.connected.Load() }

// Run connects to the origin and relays until ctx is done. A failed initial
// dial is returned at once; later disconnects are retried with backoff.
// A nil error means ctx ended the run. Run may be called once.
func (s *Service) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: already run", ErrFatal)
	}
	s.running.Store(true)
	defer s.running.Store(false)

	c, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: initial connect: %w", ErrFatal, err)
	}
	s.startedAt.Store(time.Now().UnixNano())
	s.logger.Info(ctx, "relay started",
		logger.String("uri", s.uri),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.pool.Start(runCtx)
	defer s.shutdownPool(ctx)
	go func() {
		select {
		case err := <-s.pool.Errors():
			cancel(err)
		case <-runCtx.Done():
		}
	}()

	for {
		s.consume(runCtx, c, cancel)
		_ = c.Close()
		s.setConnected(false)

		if runCtx.Err() != nil {
			break
		}
		if c, err = s.reconnect(runCtx); err != nil {
			break
		}
	}

	if ctx.Err() != nil {
		s.logger.Info(context.WithoutCancel(ctx), "relay stopped")
		return nil
	}
	if cause := context.Cause(runCtx); cause != nil {
		return fmt.Errorf("%w: %w", ErrFatal, cause)
	}
	return nil
}

// consume submits every packet of c until the stream ends or ctx is done.
func (s *Service) consume(ctx context.Context, c *conn.Conn, fail context.CancelCauseFunc) {
	for p, err := range c.Packets(ctx) {
		if err != nil {
			if errors.Is(err, conn.ErrDecode) {
				metrics.RecordDecodeError()
				s.logger.Warn(ctx, "dropping undecodable frame", logger.Error(err))
				continue
			}
			s.logger.Warn(ctx, "inbound stream failed", logger.Error(err))
			return
		}
		s.received.Add(1)
		if err := s.pool.Submit(ctx, p); err != nil {
			if ctx.Err() == nil {
				fail(err)
			}
			return
		}
	}
	if ctx.Err() == nil {
		s.logger.Warn(ctx, "inbound stream ended")
	}
}

func (s *Service) dial(ctx context.Context) (*conn.Conn, error) {
	c, err := conn.Dial(ctx, s.uri, s.rxName, s.dialOpts...)
	if err != nil {
		return nil, err
	}
	s.setConnected(true)
	s.logger.Info(ctx, "connected to origin",
		logger.String("uri", s.uri),
		logger.String("guid", c.User().GUID),
	)
	return c, nil
}

func (s *Service) reconnect(ctx context.Context) (*conn.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectInitialBackoff
	b.MaxInterval = s.reconnectMax
	b.MaxElapsedTime = 0

	var c *conn.Conn
	op := func() error {
		metrics.RecordReconnect()
		s.reconnects.Add(1)
		var err error
		c, err = s.dial(ctx)
		return err
	}
	onRetry := func(err error, next time.Duration) {
		s.logger.Warn(ctx, "reconnect failed",
			logger.Error(err),
			logger.Duration("retry_in", next),
		)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), onRetry); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) setConnected(up bool) {
	s.connected.Store(up)
	metrics.SetInboundConnected(up)
}

func (s *Service) shutdownPool(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), poolShutdownTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(shutdownCtx, "worker pool shutdown failed", logger.Error(err))
	}
}

// Close releases the notification broker. Call it after Run returned and the
// read API stopped.
func (s *Service) Close() {
	s.broker.Close()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	ctx := context.Background()
	stats := map[string]interface{}{
		"running":           s.running.Load(),
		"inbound_connected": s.connected.Load(),
		"workers":           s.pool.Size(),
		"queue_size":        s.queueSize,
		"queue_length":      s.pool.Len(),
		"packets_received":  s.received.Load(),
		"packets_processed": s.pool.Processed(),
		"reconnects":        s.reconnects.Load(),
		"dedupe_entries":    s.deduper.Size(),
		"subscribers":       s.broker.Subscribers(),
		"state":             s.store.Counts(ctx),
	}
	if at := s.startedAt.Load(); at != 0 {
		stats["uptime_seconds"] = int64(time.Since(time.Unix(0, at)).Seconds())
	}
	return stats
}
