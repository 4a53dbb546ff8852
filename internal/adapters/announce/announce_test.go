package announce

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/tarelay/internal/adapters/conn"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

// origin accepts connections after failFirst rejected upgrades and forwards
// every packet that follows the handshake.
func origin(t *testing.T, failFirst int32, out chan<- *wire.Packet) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failFirst {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if p, err := wire.Decode(data); err == nil {
				out <- p
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestAnnounce(t *testing.T) {
	Convey("Given a reachable origin", t, func() {
		got := make(chan *wire.Packet, 4)
		srv, hits := origin(t, 0, got)
		a := New(wsURL(srv), "TA-Relay-TX")

		Convey("Announce sends exactly one MatchUpdated on one connection", func() {
			m := model.Match{GUID: "M1", AssociatedUsers: []string{"P1", "S1"}}
			So(a.Announce(context.Background(), m), ShouldBeNil)

			select {
			case p := <-got:
				ev, ok := p.Payload.(*wire.Event)
				So(ok, ShouldBeTrue)
				upd, ok := ev.ChangedObject.(*wire.MatchUpdatedEvent)
				So(ok, ShouldBeTrue)
				So(upd.Match.GUID, ShouldEqual, "M1")
				So(upd.Match.AssociatedUsers, ShouldResemble, []string{"P1", "S1"})
			case <-time.After(5 * time.Second):
				t.Fatal("no announcement received")
			}

			select {
			case p := <-got:
				t.Fatalf("unexpected extra packet %v", p.ID)
			case <-time.After(100 * time.Millisecond):
			}
			So(hits.Load(), ShouldEqual, int32(1))
		})
	})

	Convey("Given an origin that rejects the first two dials", t, func() {
		got := make(chan *wire.Packet, 4)
		srv, hits := origin(t, 2, got)
		a := New(wsURL(srv), "TA-Relay-TX", WithBackoff(time.Millisecond, 5*time.Millisecond), WithMaxRetries(3))

		So(a.Announce(context.Background(), model.Match{GUID: "M2"}), ShouldBeNil)
		So(hits.Load(), ShouldEqual, int32(3))
	})

	Convey("Given an origin that never accepts", t, func() {
		got := make(chan *wire.Packet, 1)
		srv, hits := origin(t, 100, got)
		a := New(wsURL(srv), "TA-Relay-TX", WithBackoff(time.Millisecond, 2*time.Millisecond), WithMaxRetries(2))

		err := a.Announce(context.Background(), model.Match{GUID: "M3"})
		So(errors.Is(err, conn.ErrConnect), ShouldBeTrue)
		So(hits.Load(), ShouldEqual, int32(3))
	})
}
