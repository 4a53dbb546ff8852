// Package dispatch routes decoded packets into the reconciliation engine and
// is the error boundary for per-packet failures.
package dispatch

import (
	"context"
	"fmt"

	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/okian/tarelay/pkg/metrics"
)

// Reconciler folds packets into state.
type Reconciler interface {
	ProcessEvent(ctx context.Context, ev *wire.Event) error
	ProcessResponse(ctx context.Context, r *wire.Response) error
	ProcessPush(ctx context.Context, p *wire.Push) error
}

// Route hands p to the matching Reconciler method. A packet without payload
// is a no-op; kinds other than event, response and push are logged and
// otherwise ignored.
func Route(ctx context.Context, r Reconciler, p *wire.Packet) error {
	if p == nil {
		return nil
	}
	switch pl := p.Payload.(type) {
	case nil:
		return nil
	case *wire.Event:
		return r.ProcessEvent(ctx, pl)
	case *wire.Response:
		return r.ProcessResponse(ctx, pl)
	case *wire.Push:
		return r.ProcessPush(ctx, pl)
	default:
		metrics.RecordErrorByComponent("dispatch", "unhandled_type")
		logger.Get().Named("dispatch").Warn(ctx, "unhandled packet",
			logger.String("packet_id", p.ID),
			logger.String("from", p.From),
			logger.Error(fmt.Errorf("%w: %s", ErrUnhandledType, p.Kind())),
		)
		return nil
	}
}

// EntityKey returns the key that orders p against other packets. Packets
// with the same key are applied in receipt order. barrier reports packets
// that must run alone, after everything before them.
func EntityKey(p *wire.Packet) (key string, barrier bool) {
	if p == nil {
		return "", false
	}
	switch pl := p.Payload.(type) {
	case *wire.Response:
		return "", true
	case *wire.Event:
		return eventKey(pl.ChangedObject), false
	case *wire.Push:
		switch d := pl.Data.(type) {
		case *wire.RealtimeScorePush:
			return "user:" + d.Score.UserGUID, false
		case *wire.SongFinishedPush:
			if d.Player != nil {
				return "user:" + d.Player.GUID, false
			}
		}
	}
	return "", false
}

func eventKey(o wire.ChangedObject) string {
	switch o := o.(type) {
	case *wire.UserAddedEvent:
		if o.User != nil {
			return "user:" + o.User.GUID
		}
	case *wire.UserUpdatedEvent:
		if o.User != nil {
			return "user:" + o.User.GUID
		}
	case *wire.UserLeftEvent:
		if o.User != nil {
			return "user:" + o.User.GUID
		}
	case *wire.MatchCreatedEvent:
		if o.Match != nil {
			return "match:" + o.Match.GUID
		}
	case *wire.MatchUpdatedEvent:
		if o.Match != nil {
			return "match:" + o.Match.GUID
		}
	case *wire.MatchDeletedEvent:
		if o.Match != nil {
			return "match:" + o.Match.GUID
		}
	case *wire.HostAddedEvent:
		if o.Server != nil {
			return "host:" + o.Server.Name
		}
	case *wire.HostDeletedEvent:
		if o.Server != nil {
			return "host:" + o.Server.Name
		}
	}
	return ""
}
