package notify

import (
	"context"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestBroker(t *testing.T) {
	convey.Convey("Given a broker with two subscribers", t, func() {
		b := NewBroker(WithBufferSize(1))
		ctx := context.Background()
		a, cancelA := b.Subscribe(ctx)
		c, cancelC := b.Subscribe(ctx)
		defer cancelC()
		convey.So(b.Subscribers(), convey.ShouldEqual, 2)

		convey.Convey("A published change reaches both", func() {
			b.Publish(ctx, Change{PacketID: "p1", Kind: "event"})
			got := <-a
			convey.So(got.PacketID, convey.ShouldEqual, "p1")
			convey.So(got.At.IsZero(), convey.ShouldBeFalse)
			convey.So((<-c).PacketID, convey.ShouldEqual, "p1")
		})

		convey.Convey("A full subscriber drops instead of blocking", func() {
			b.Publish(ctx, Change{PacketID: "p1"})
			b.Publish(ctx, Change{PacketID: "p2"})
			convey.So((<-a).PacketID, convey.ShouldEqual, "p1")
			select {
			case extra := <-a:
				convey.So(extra.PacketID, convey.ShouldBeEmpty)
			default:
			}
		})

		convey.Convey("Cancel closes the channel and is idempotent", func() {
			cancelA()
			cancelA()
			_, open := <-a
			convey.So(open, convey.ShouldBeFalse)
			convey.So(b.Subscribers(), convey.ShouldEqual, 1)
		})
	})

	convey.Convey("Given a subscription bound to a context", t, func() {
		b := NewBroker()
		ctx, cancel := context.WithCancel(context.Background())
		ch, _ := b.Subscribe(ctx)
		cancel()

		select {
		case _, open := <-ch:
			convey.So(open, convey.ShouldBeFalse)
		case <-time.After(time.Second):
			t.Fatal("subscription not closed on cancel")
		}
		convey.So(b.Subscribers(), convey.ShouldEqual, 0)
	})

	convey.Convey("Given a closed broker", t, func() {
		b := NewBroker()
		b.Close()
		ch, cancel := b.Subscribe(context.Background())
		defer cancel()
		_, open := <-ch
		convey.So(open, convey.ShouldBeFalse)
	})
}
