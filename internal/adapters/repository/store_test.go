package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/tarelay/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func user(guid string, t model.ClientType) model.User {
	return model.User{GUID: guid, Name: guid, ClientType: t}
}

func TestStatePartitioning(t *testing.T) {
	Convey("Given an empty state", t, func() {
		st := NewState()

		Convey("Users land in the collection for their client type", func() {
			So(st.AddUser(user("p", model.ClientTypePlayer)), ShouldBeTrue)
			So(st.AddUser(user("c", model.ClientTypeCoordinator)), ShouldBeTrue)
			So(st.AddUser(user("s", model.ClientTypeWebsocketConnection)), ShouldBeTrue)
			So(st.AddUser(user("x", model.ClientType(9))), ShouldBeFalse)

			So(len(st.Players), ShouldEqual, 1)
			So(len(st.Coordinators), ShouldEqual, 1)
			So(len(st.ServerConnections), ShouldEqual, 1)
			_, ok := st.FindUser("x")
			So(ok, ShouldBeFalse)
		})

		Convey("Adding a user evicts an older entry with the same guid", func() {
			st.AddUser(user("g", model.ClientTypePlayer))
			st.AddUser(user("g", model.ClientTypeCoordinator))

			So(st.Players, ShouldBeEmpty)
			So(len(st.Coordinators), ShouldEqual, 1)
		})

		Convey("Update without a prior insert is a no-op", func() {
			So(st.UpdateUser(user("ghost", model.ClientTypePlayer)), ShouldBeFalse)
			So(st.Counts(), ShouldResemble, Counts{})
		})

		Convey("Add then remove leaves the collection unchanged", func() {
			st.AddUser(user("a", model.ClientTypePlayer))
			before := st.Clone()
			st.AddUser(user("b", model.ClientTypePlayer))
			So(st.RemoveUser(user("b", model.ClientTypePlayer)), ShouldBeTrue)
			So(st.Players, ShouldResemble, before.Players)
		})

		Convey("Hosts are removed by name, every copy", func() {
			st.AddHost(model.CoreServer{Name: "A", Address: "1"})
			st.AddHost(model.CoreServer{Name: "A", Address: "2"})
			st.AddHost(model.CoreServer{Name: "B"})
			So(st.RemoveHostsNamed("A"), ShouldEqual, 2)
			So(st.KnownHosts, ShouldResemble, []model.CoreServer{{Name: "B"}})
		})

		Convey("PutMatch replaces a match with the same guid", func() {
			st.PutMatch(model.Match{GUID: "m", Leader: "a"})
			st.PutMatch(model.Match{GUID: "m", Leader: "b"})
			So(len(st.Matches), ShouldEqual, 1)
			So(st.Matches[0].Leader, ShouldEqual, "b")
			So(st.RemoveMatch("m"), ShouldBeTrue)
			So(st.RemoveMatch("m"), ShouldBeFalse)
		})
	})
}

func TestStateReplace(t *testing.T) {
	Convey("Given a state with users, matches, hosts and a score", t, func() {
		st := NewState()
		st.AddUser(user("old", model.ClientTypePlayer))
		st.PutMatch(model.Match{GUID: "old-match"})
		st.AddHost(model.CoreServer{Name: "old-host"})
		st.PutScore(model.RealtimeScore{UserGUID: "old", Score: 10})

		Convey("Replace rebuilds everything but scores", func() {
			st.Replace(&model.ServerState{
				Users: []model.User{
					user("s1", model.ClientTypeWebsocketConnection),
					user("c1", model.ClientTypeCoordinator),
					user("p1", model.ClientTypePlayer),
					user("p2", model.ClientTypePlayer),
				},
				Matches:    []model.Match{{GUID: "m1"}},
				KnownHosts: []model.CoreServer{{Name: "h1"}},
			})

			So(st.Counts(), ShouldResemble, Counts{
				ServerConnections: 1, Coordinators: 1, Players: 2, Matches: 1, KnownHosts: 1, Scores: 1,
			})
			_, ok := st.FindPlayer("old")
			So(ok, ShouldBeFalse)
			sc, ok := st.Score("old")
			So(ok, ShouldBeTrue)
			So(sc.Score, ShouldEqual, int32(10))
		})
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(ctx)

		Convey("Snapshots are isolated from later writes", func() {
			So(s.Update(ctx, func(st *State) error {
				st.PutMatch(model.Match{GUID: "m1", AssociatedUsers: []string{"a"}})
				return nil
			}), ShouldBeNil)

			snap := s.Snapshot(ctx)
			snap.Matches[0].AssociatedUsers[0] = "mutated"

			m, err := s.Match(ctx, "m1")
			So(err, ShouldBeNil)
			So(m.AssociatedUsers, ShouldResemble, []string{"a"})
		})

		Convey("Update returns the function's error", func() {
			boom := errors.New("boom")
			So(s.Update(ctx, func(*State) error { return boom }), ShouldEqual, boom)
			So(s.Update(ctx, nil), ShouldEqual, ErrNilFunc)
		})

		Convey("Unknown matches report ErrNotFound", func() {
			_, err := s.Match(ctx, "nope")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Concurrent writers are serialized", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = s.Update(ctx, func(st *State) error {
						st.AddHost(model.CoreServer{Name: "h"})
						return nil
					})
				}()
			}
			wg.Wait()
			So(s.Counts(ctx).KnownHosts, ShouldEqual, 50)
		})

		Convey("A cancelled context is rejected", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(s.View(cctx, func(*State) error { return nil }), ShouldEqual, context.Canceled)
		})
	})

	Convey("Given a seeded store", t, func() {
		seed := NewState()
		seed.AddUser(user("p", model.ClientTypePlayer))
		s := NewMemoryStore(context.Background(), WithState(seed))
		So(s.Counts(context.Background()).Players, ShouldEqual, 1)
	})
}
