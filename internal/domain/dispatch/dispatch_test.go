package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/okian/tarelay/internal/adapters/notify"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/domain/dedupe"
	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/internal/domain/reconcile"
	"github.com/okian/tarelay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace/noop"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) note(kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind)
	return r.err
}

func (r *recorder) ProcessEvent(context.Context, *wire.Event) error       { return r.note("event") }
func (r *recorder) ProcessResponse(context.Context, *wire.Response) error { return r.note("response") }
func (r *recorder) ProcessPush(context.Context, *wire.Push) error         { return r.note("push") }

type sink struct {
	changes []notify.Change
}

func (s *sink) Publish(_ context.Context, c notify.Change) { s.changes = append(s.changes, c) }

func TestRoute(t *testing.T) {
	Convey("Given a recording reconciler", t, func() {
		ctx := context.Background()
		r := &recorder{}

		Convey("Each routable kind reaches its method", func() {
			So(Route(ctx, r, &wire.Packet{Payload: &wire.Event{}}), ShouldBeNil)
			So(Route(ctx, r, &wire.Packet{Payload: &wire.Response{}}), ShouldBeNil)
			So(Route(ctx, r, &wire.Packet{Payload: &wire.Push{}}), ShouldBeNil)
			So(r.calls, ShouldResemble, []string{"event", "response", "push"})
		})

		Convey("Empty packets and other kinds are accepted without routing", func() {
			So(Route(ctx, r, nil), ShouldBeNil)
			So(Route(ctx, r, &wire.Packet{ID: "x"}), ShouldBeNil)
			So(Route(ctx, r, &wire.Packet{ID: "y", Payload: &wire.Acknowledgement{}}), ShouldBeNil)
			So(Route(ctx, r, &wire.Packet{ID: "z", Payload: &wire.Request{}}), ShouldBeNil)
			So(r.calls, ShouldBeEmpty)
		})

		Convey("Engine errors are returned to the caller", func() {
			r.err = reconcile.ErrUnknownPlayer
			So(errors.Is(Route(ctx, r, &wire.Packet{Payload: &wire.Push{}}), reconcile.ErrUnknownPlayer), ShouldBeTrue)
		})
	})
}

func TestDispatcherHandle(t *testing.T) {
	Convey("Given a dispatcher with a deduper and a notifier", t, func() {
		ctx := context.Background()
		r := &recorder{}
		s := &sink{}
		d := NewDispatcher(r,
			WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(8))),
			WithNotifier(s),
			WithTracer(noop.NewTracerProvider().Tracer("test")),
		)

		Convey("A successful route publishes one notification", func() {
			So(d.Handle(ctx, &wire.Packet{ID: "p1", From: "origin", Payload: &wire.Event{}}), ShouldBeNil)
			So(s.changes, ShouldHaveLength, 1)
			So(s.changes[0].PacketID, ShouldEqual, "p1")
			So(s.changes[0].Kind, ShouldEqual, "event")
			So(s.changes[0].From, ShouldEqual, "origin")
		})

		Convey("A redelivered packet id is dropped", func() {
			p := &wire.Packet{ID: "p1", Payload: &wire.Event{}}
			So(d.Handle(ctx, p), ShouldBeNil)
			So(d.Handle(ctx, p), ShouldBeNil)
			So(r.calls, ShouldHaveLength, 1)
			So(s.changes, ShouldHaveLength, 1)
		})

		Convey("A failed route is absorbed and not announced", func() {
			r.err = fmt.Errorf("%w: nobody", reconcile.ErrUnknownPlayer)
			So(d.Handle(ctx, &wire.Packet{ID: "p2", Payload: &wire.Push{}}), ShouldBeNil)
			So(s.changes, ShouldBeEmpty)
		})

		Convey("An announce failure still notifies, since the match was stored", func() {
			r.err = fmt.Errorf("%w: origin down", reconcile.ErrAnnounce)
			So(d.Handle(ctx, &wire.Packet{ID: "p3", Payload: &wire.Event{}}), ShouldBeNil)
			So(s.changes, ShouldHaveLength, 1)
		})

		Convey("A packet cut short by cancellation can be redelivered", func() {
			r.err = context.Canceled
			p := &wire.Packet{ID: "p5", Payload: &wire.Event{}}
			So(d.Handle(ctx, p), ShouldBeNil)
			r.err = nil
			So(d.Handle(ctx, p), ShouldBeNil)
			So(r.calls, ShouldHaveLength, 2)
			So(s.changes, ShouldHaveLength, 1)
		})

		Convey("Unimplemented kinds are absorbed by default", func() {
			r.err = reconcile.ErrUnimplementedKind
			So(d.Handle(ctx, &wire.Packet{ID: "p4", Payload: &wire.Event{}}), ShouldBeNil)
		})
	})

	Convey("Given a dispatcher that fails on unimplemented kinds", t, func() {
		r := &recorder{err: reconcile.ErrUnimplementedKind}
		d := NewDispatcher(r, WithFailOnUnimplemented(true))

		err := d.Handle(context.Background(), &wire.Packet{ID: "q", Payload: &wire.Response{}})
		So(errors.Is(err, reconcile.ErrUnimplementedKind), ShouldBeTrue)

		r.err = reconcile.ErrMissingScoreRecord
		So(d.Handle(context.Background(), &wire.Packet{ID: "q2", Payload: &wire.Push{}}), ShouldBeNil)
	})
}

func TestEntityKey(t *testing.T) {
	Convey("Given packets about the same player", t, func() {
		u := &model.User{GUID: "P1"}
		added := &wire.Packet{Payload: &wire.Event{ChangedObject: &wire.UserAddedEvent{User: u}}}
		score := &wire.Packet{Payload: &wire.Push{Data: &wire.RealtimeScorePush{Score: model.RealtimeScore{UserGUID: "P1"}}}}
		done := &wire.Packet{Payload: &wire.Push{Data: &wire.SongFinishedPush{Player: u}}}

		Convey("They share one key", func() {
			k1, _ := EntityKey(added)
			k2, _ := EntityKey(score)
			k3, _ := EntityKey(done)
			So(k1, ShouldEqual, "user:P1")
			So(k2, ShouldEqual, k1)
			So(k3, ShouldEqual, k1)
		})
	})

	Convey("Given other packets", t, func() {
		m := &model.Match{GUID: "M1"}
		k, barrier := EntityKey(&wire.Packet{Payload: &wire.Event{ChangedObject: &wire.MatchUpdatedEvent{Match: m}}})
		So(k, ShouldEqual, "match:M1")
		So(barrier, ShouldBeFalse)

		k, _ = EntityKey(&wire.Packet{Payload: &wire.Event{ChangedObject: &wire.HostDeletedEvent{Server: &model.CoreServer{Name: "a"}}}})
		So(k, ShouldEqual, "host:a")

		_, barrier = EntityKey(&wire.Packet{Payload: &wire.Response{}})
		So(barrier, ShouldBeTrue)

		k, barrier = EntityKey(&wire.Packet{Payload: &wire.Event{ChangedObject: &wire.MatchCreatedEvent{}}})
		So(k, ShouldBeEmpty)
		So(barrier, ShouldBeFalse)
	})
}

func TestOutcome(t *testing.T) {
	Convey("Outcome names wrapped reconcile errors", t, func() {
		So(Outcome(nil), ShouldEqual, "ok")
		So(Outcome(fmt.Errorf("x: %w", reconcile.ErrMissingPayload)), ShouldEqual, "missing_payload")
		So(Outcome(errors.New("other")), ShouldEqual, "error")
	})
}
