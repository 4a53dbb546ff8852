package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tarelay/internal/adapters/notify"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/domain/dedupe"
	"github.com/okian/tarelay/internal/domain/reconcile"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/okian/tarelay/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/okian/tarelay/internal/domain/dispatch"

// Notifier is told about every successfully routed packet.
type Notifier interface {
	Publish(ctx context.Context, c notify.Change)
}

// Dispatcher wraps Route with de-duplication, tracing, metrics, logging and
// notifications.
type Dispatcher struct {
	rec                 Reconciler
	dedupe              dedupe.Deduper
	notifier            Notifier
	tracer              trace.Tracer
	failOnUnimplemented bool
	log                 logger.Logger
}

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithDeduper drops packets whose id was already handled.
func WithDeduper(d dedupe.Deduper) Option {
	return func(x *Dispatcher) { x.dedupe = d }
}

// WithNotifier sets where change notifications are published.
func WithNotifier(n Notifier) Option {
	return func(x *Dispatcher) { x.notifier = n }
}

// WithTracer replaces the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(x *Dispatcher) {
		if t != nil {
			x.tracer = t
		}
	}
}

// WithFailOnUnimplemented makes Handle return unimplemented-kind failures.
func WithFailOnUnimplemented(fail bool) Option {
	return func(x *Dispatcher) { x.failOnUnimplemented = fail }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(x *Dispatcher) {
		if l != nil {
			x.log = l
		}
	}
}

// NewDispatcher creates a Dispatcher over rec.
func NewDispatcher(rec Reconciler, opts ...Option) *Dispatcher {
	d := &Dispatcher{rec: rec}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	if d.log == nil {
		d.log = logger.Get().Named("dispatch")
	}
	return d
}

// Handle routes p and absorbs its failure. It returns an error only for an
// unimplemented kind when configured to fail on those.
func (d *Dispatcher) Handle(ctx context.Context, p *wire.Packet) error {
	if p == nil {
		return nil
	}
	kind := string(p.Kind())
	metrics.RecordPacketReceived(kind)

	if d.dedupe != nil && p.ID != "" && d.dedupe.SeenAndRecord(ctx, p.ID) {
		metrics.RecordPacketDuplicate()
		d.log.Debug(ctx, "dropping duplicate packet", logger.String("packet_id", p.ID))
		return nil
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.route", trace.WithAttributes(
		attribute.String("packet.id", p.ID),
		attribute.String("packet.kind", kind),
		attribute.String("packet.from", p.From),
	))
	defer span.End()

	start := time.Now()
	err := Route(ctx, d.rec, p)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
	outcome := Outcome(err)
	metrics.RecordReconcile(kind, outcome, latencyMs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		metrics.RecordErrorByComponent("reconcile", outcome)
		if d.dedupe != nil && p.ID != "" && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			// Not applied; a redelivery must get through.
			d.dedupe.Unrecord(ctx, p.ID)
		}

		fields := []logger.Field{
			logger.String("packet_id", p.ID),
			logger.String("kind", kind),
			logger.String("from", p.From),
			logger.Error(err),
		}
		if errors.Is(err, reconcile.ErrUnimplementedKind) {
			d.log.Error(ctx, "unimplemented packet kind", fields...)
			if d.failOnUnimplemented {
				return fmt.Errorf("packet %s: %w", p.ID, err)
			}
			return nil
		}
		d.log.Warn(ctx, "reconcile failed", fields...)
		// The match is stored even when its announcement failed.
		if !errors.Is(err, reconcile.ErrAnnounce) {
			return nil
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if d.notifier != nil {
		d.notifier.Publish(ctx, notify.Change{PacketID: p.ID, Kind: kind, From: p.From, At: time.Now()})
	}
	return nil
}

// Outcome names err for metrics and traces.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, reconcile.ErrUnimplementedKind):
		return "unimplemented"
	case errors.Is(err, reconcile.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, reconcile.ErrMissingScoreRecord):
		return "missing_score_record"
	case errors.Is(err, reconcile.ErrMissingPayload):
		return "missing_payload"
	case errors.Is(err, reconcile.ErrAnnounce):
		return "announce_failed"
	default:
		return "error"
	}
}
