package reconcile

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

type fakeAnnouncer struct {
	mu   sync.Mutex
	sent []model.Match
	err  error
}

func (f *fakeAnnouncer) Announce(_ context.Context, m model.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m.Clone())
	return f.err
}

type fakeSink struct {
	players []string
}

func (f *fakeSink) Record(_ context.Context, player model.User, _ model.RealtimeScore) error {
	f.players = append(f.players, player.GUID)
	return errors.New("disk full")
}

func newUser(guid, name string, t model.ClientType) *model.User {
	return &model.User{GUID: guid, Name: name, ClientType: t}
}

func event(o wire.ChangedObject) *wire.Event { return &wire.Event{ChangedObject: o} }

func TestUserEvents(t *testing.T) {
	Convey("Given an engine over an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		e := NewEngine(store)

		Convey("UserAdded then UserLeft leaves no user with that guid", func() {
			u := newUser("u1", "Alice", model.ClientTypePlayer)
			So(e.ProcessEvent(ctx, event(&wire.UserAddedEvent{User: u})), ShouldBeNil)
			So(len(store.Snapshot(ctx).Players), ShouldEqual, 1)

			So(e.ProcessEvent(ctx, event(&wire.UserLeftEvent{User: u})), ShouldBeNil)
			_, ok := store.Snapshot(ctx).FindUser("u1")
			So(ok, ShouldBeFalse)
		})

		Convey("UserUpdated for an unknown guid inserts nothing", func() {
			u := newUser("ghost", "Ghost", model.ClientTypeCoordinator)
			So(e.ProcessEvent(ctx, event(&wire.UserUpdatedEvent{User: u})), ShouldBeNil)
			So(store.Snapshot(ctx).Counts(), ShouldResemble, repository.Counts{})
		})

		Convey("UserUpdated replaces the stored user in place", func() {
			So(e.ProcessEvent(ctx, event(&wire.UserAddedEvent{User: newUser("c1", "Old", model.ClientTypeCoordinator)})), ShouldBeNil)
			So(e.ProcessEvent(ctx, event(&wire.UserUpdatedEvent{User: newUser("c1", "New", model.ClientTypeCoordinator)})), ShouldBeNil)
			u, ok := store.Snapshot(ctx).FindUser("c1")
			So(ok, ShouldBeTrue)
			So(u.Name, ShouldEqual, "New")
		})

		Convey("UserAdded ignores server connections and unrecognized types", func() {
			So(e.ProcessEvent(ctx, event(&wire.UserAddedEvent{User: newUser("s1", "srv", model.ClientTypeWebsocketConnection)})), ShouldBeNil)
			So(e.ProcessEvent(ctx, event(&wire.UserAddedEvent{User: newUser("x", "x", model.ClientType(42))})), ShouldBeNil)
			So(store.Snapshot(ctx).Counts(), ShouldResemble, repository.Counts{})
		})

		Convey("Server connections known from Connect can be updated and removed", func() {
			So(e.ProcessResponse(ctx, &wire.Response{Type: wire.ResponseSuccess, Details: &wire.ConnectResponse{
				State: &model.ServerState{Users: []model.User{*newUser("s1", "old", model.ClientTypeWebsocketConnection)}},
			}}), ShouldBeNil)
			So(e.ProcessEvent(ctx, event(&wire.UserUpdatedEvent{User: newUser("s1", "new", model.ClientTypeWebsocketConnection)})), ShouldBeNil)
			So(store.Snapshot(ctx).ServerConnections[0].Name, ShouldEqual, "new")
			So(e.ProcessEvent(ctx, event(&wire.UserLeftEvent{User: newUser("s1", "new", model.ClientTypeWebsocketConnection)})), ShouldBeNil)
			So(store.Snapshot(ctx).ServerConnections, ShouldBeEmpty)
		})

		Convey("Missing payloads are logged and ignored", func() {
			So(e.ProcessEvent(ctx, event(nil)), ShouldBeNil)
			So(e.ProcessEvent(ctx, event(&wire.UserAddedEvent{})), ShouldBeNil)
			So(e.ProcessEvent(ctx, event(&wire.HostDeletedEvent{})), ShouldBeNil)
			So(store.Snapshot(ctx).Counts(), ShouldResemble, repository.Counts{})
		})

		Convey("Qualifier events are unimplemented", func() {
			err := e.ProcessEvent(ctx, event(&wire.OpaqueEvent{Field: 7}))
			So(errors.Is(err, ErrUnimplementedKind), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "QualifierCreated")
		})
	})
}

func TestMatchCreated(t *testing.T) {
	Convey("Given a store with one receiving and one transmitting server connection", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		ann := &fakeAnnouncer{}
		e := NewEngine(store, WithAnnouncer(ann))

		So(e.ProcessResponse(ctx, &wire.Response{Type: wire.ResponseSuccess, Details: &wire.ConnectResponse{
			State: &model.ServerState{Users: []model.User{
				*newUser("S1", "TA-Relay-RX", model.ClientTypeWebsocketConnection),
				*newUser("S2", "TA-Relay-TX", model.ClientTypeWebsocketConnection),
				*newUser("P1", "Alice", model.ClientTypePlayer),
			}},
		}}), ShouldBeNil)

		Convey("MatchCreated stores the extended match and announces it once", func() {
			m := &model.Match{GUID: "M1", AssociatedUsers: []string{"P1"}}
			So(e.ProcessEvent(ctx, event(&wire.MatchCreatedEvent{Match: m})), ShouldBeNil)

			stored, ok := store.Snapshot(ctx).FindMatch("M1")
			So(ok, ShouldBeTrue)
			So(stored.AssociatedUsers, ShouldHaveLength, 2)
			So(stored.AssociatedUsers, ShouldContain, "P1")
			So(stored.AssociatedUsers, ShouldContain, "S1")
			So(stored.AssociatedUsers, ShouldNotContain, "S2")

			So(ann.sent, ShouldHaveLength, 1)
			So(ann.sent[0].GUID, ShouldEqual, "M1")
			So(ann.sent[0].AssociatedUsers, ShouldResemble, stored.AssociatedUsers)

			Convey("The caller's match is not modified", func() {
				So(m.AssociatedUsers, ShouldResemble, []string{"P1"})
			})
		})

		Convey("The announced match keeps fields the relay does not model", func() {
			// selected characteristic (5) and start time (7)
			extra := []byte{0x2a, 0x02, 0x0a, 0x00, 0x38, 0xce, 0x0a}
			in, err := wire.Encode(&wire.Packet{ID: "in-1", Payload: event(&wire.MatchCreatedEvent{
				Match: &model.Match{GUID: "M3", AssociatedUsers: []string{"P1"}, Unknown: extra},
			})})
			So(err, ShouldBeNil)
			p, err := wire.Decode(in)
			So(err, ShouldBeNil)

			So(e.ProcessEvent(ctx, p.Payload.(*wire.Event)), ShouldBeNil)
			So(ann.sent, ShouldHaveLength, 1)
			So(ann.sent[0].Unknown, ShouldResemble, extra)

			out, err := wire.Encode(&wire.Packet{ID: "tx-1", Payload: event(&wire.MatchUpdatedEvent{Match: &ann.sent[0]})})
			So(err, ShouldBeNil)
			back, err := wire.Decode(out)
			So(err, ShouldBeNil)
			So(back.Payload.(*wire.Event).ChangedObject.(*wire.MatchUpdatedEvent).Match.Unknown, ShouldResemble, extra)
		})

		Convey("A connection already associated is not duplicated", func() {
			So(e.ProcessEvent(ctx, event(&wire.MatchCreatedEvent{Match: &model.Match{GUID: "M1", AssociatedUsers: []string{"S1"}}})), ShouldBeNil)
			stored, _ := store.Snapshot(ctx).FindMatch("M1")
			So(stored.AssociatedUsers, ShouldResemble, []string{"S1"})
		})

		Convey("A failed announce is reported but the match stays stored", func() {
			ann.err = errors.New("origin down")
			err := e.ProcessEvent(ctx, event(&wire.MatchCreatedEvent{Match: &model.Match{GUID: "M2"}}))
			So(errors.Is(err, ErrAnnounce), ShouldBeTrue)
			_, ok := store.Snapshot(ctx).FindMatch("M2")
			So(ok, ShouldBeTrue)
		})

		Convey("MatchCreated without a match stores and announces nothing", func() {
			So(e.ProcessEvent(ctx, event(&wire.MatchCreatedEvent{})), ShouldBeNil)
			So(store.Snapshot(ctx).Matches, ShouldBeEmpty)
			So(ann.sent, ShouldBeEmpty)
		})

		Convey("MatchUpdated and MatchDeleted act on the stored match", func() {
			So(e.ProcessEvent(ctx, event(&wire.MatchUpdatedEvent{Match: &model.Match{GUID: "M9"}})), ShouldBeNil)
			So(store.Snapshot(ctx).Matches, ShouldBeEmpty)

			So(e.ProcessEvent(ctx, event(&wire.MatchCreatedEvent{Match: &model.Match{GUID: "M1"}})), ShouldBeNil)
			So(e.ProcessEvent(ctx, event(&wire.MatchUpdatedEvent{Match: &model.Match{GUID: "M1", Leader: "P1"}})), ShouldBeNil)
			stored, _ := store.Snapshot(ctx).FindMatch("M1")
			So(stored.Leader, ShouldEqual, "P1")

			So(e.ProcessEvent(ctx, event(&wire.MatchDeletedEvent{Match: &model.Match{GUID: "M1"}})), ShouldBeNil)
			So(store.Snapshot(ctx).Matches, ShouldBeEmpty)
		})
	})
}

func TestHostEvents(t *testing.T) {
	Convey("Given HostAdded twice then HostDeleted for the same name", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		e := NewEngine(store)
		host := &model.CoreServer{Name: "srv-a", Address: "10.0.0.1", Port: 2052}

		So(e.ProcessEvent(ctx, event(&wire.HostAddedEvent{Server: host})), ShouldBeNil)
		So(e.ProcessEvent(ctx, event(&wire.HostAddedEvent{Server: host})), ShouldBeNil)
		So(store.Snapshot(ctx).KnownHosts, ShouldHaveLength, 2)

		So(e.ProcessEvent(ctx, event(&wire.HostDeletedEvent{Server: &model.CoreServer{Name: "srv-a"}})), ShouldBeNil)
		So(store.Snapshot(ctx).KnownHosts, ShouldBeEmpty)
	})
}

func TestConnectResponse(t *testing.T) {
	Convey("Given a Connect response with one coordinator and two players", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		e := NewEngine(store)

		resp := &wire.Response{Type: wire.ResponseSuccess, Details: &wire.ConnectResponse{
			State: &model.ServerState{Users: []model.User{
				*newUser("C1", "coord", model.ClientTypeCoordinator),
				*newUser("P1", "a", model.ClientTypePlayer),
				*newUser("P2", "b", model.ClientTypePlayer),
			}},
		}}
		So(e.ProcessResponse(ctx, resp), ShouldBeNil)

		snap := store.Snapshot(ctx)
		So(snap.Coordinators, ShouldHaveLength, 1)
		So(snap.Players, ShouldHaveLength, 2)
		So(snap.ServerConnections, ShouldBeEmpty)
		So(snap.Matches, ShouldBeEmpty)

		Convey("A failed Connect keeps the prior state", func() {
			So(e.ProcessResponse(ctx, &wire.Response{Type: wire.ResponseFail, Details: &wire.ConnectResponse{Message: "bad password"}}), ShouldBeNil)
			So(store.Snapshot(ctx).Players, ShouldHaveLength, 2)
		})

		Convey("A Connect without state keeps the prior state", func() {
			So(e.ProcessResponse(ctx, &wire.Response{Type: wire.ResponseSuccess, Details: &wire.ConnectResponse{}}), ShouldBeNil)
			So(store.Snapshot(ctx).Players, ShouldHaveLength, 2)
		})

		Convey("Other responses are unimplemented", func() {
			err := e.ProcessResponse(ctx, &wire.Response{Details: &wire.OpaqueResponse{Field: 6}})
			So(errors.Is(err, ErrUnimplementedKind), ShouldBeTrue)
		})
	})
}

func TestPushes(t *testing.T) {
	Convey("Given a store with one player", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		sink := &fakeSink{}
		e := NewEngine(store, WithScoreSink(sink))
		So(e.ProcessEvent(ctx, event(&wire.UserAddedEvent{User: newUser("P1", "Alice", model.ClientTypePlayer)})), ShouldBeNil)

		Convey("A score for an unknown player fails and leaves scores untouched", func() {
			err := e.ProcessPush(ctx, &wire.Push{Data: &wire.RealtimeScorePush{Score: model.RealtimeScore{UserGUID: "nobody", Score: 5}}})
			So(errors.Is(err, ErrUnknownPlayer), ShouldBeTrue)
			So(store.Snapshot(ctx).Scores, ShouldBeEmpty)
			So(sink.players, ShouldBeEmpty)
		})

		Convey("A score for a known player overwrites the previous one", func() {
			So(e.ProcessPush(ctx, &wire.Push{Data: &wire.RealtimeScorePush{Score: model.RealtimeScore{UserGUID: "P1", Score: 5, Combo: 3}}}), ShouldBeNil)
			So(e.ProcessPush(ctx, &wire.Push{Data: &wire.RealtimeScorePush{Score: model.RealtimeScore{UserGUID: "P1", Score: 9}}}), ShouldBeNil)

			sc, ok := store.Snapshot(ctx).Score("P1")
			So(ok, ShouldBeTrue)
			So(sc.Score, ShouldEqual, int32(9))
			So(sc.Combo, ShouldEqual, int32(0))
			So(sink.players, ShouldResemble, []string{"P1", "P1"})

			Convey("SongFinished then succeeds", func() {
				err := e.ProcessPush(ctx, &wire.Push{Data: &wire.SongFinishedPush{Player: newUser("P1", "Alice", model.ClientTypePlayer), Score: 9}})
				So(err, ShouldBeNil)
			})
		})

		Convey("SongFinished without a score on file fails", func() {
			err := e.ProcessPush(ctx, &wire.Push{Data: &wire.SongFinishedPush{Player: newUser("P1", "Alice", model.ClientTypePlayer)}})
			So(errors.Is(err, ErrMissingScoreRecord), ShouldBeTrue)
		})

		Convey("SongFinished without a player fails", func() {
			err := e.ProcessPush(ctx, &wire.Push{Data: &wire.SongFinishedPush{}})
			So(errors.Is(err, ErrMissingPayload), ShouldBeTrue)
		})

		Convey("Leaderboard pushes are unimplemented", func() {
			err := e.ProcessPush(ctx, &wire.Push{Data: &wire.OpaquePush{Field: 1}})
			So(errors.Is(err, ErrUnimplementedKind), ShouldBeTrue)
		})
	})
}
