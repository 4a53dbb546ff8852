// Package reconcile folds inbound events, responses and pushes into the state store.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/adapters/wire"
	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/okian/tarelay/pkg/metrics"
)

// Announcer re-publishes a match to the origin server as MatchUpdated.
type Announcer interface {
	Announce(ctx context.Context, m model.Match) error
}

// ScoreSink receives every accepted realtime score.
type ScoreSink interface {
	Record(ctx context.Context, player model.User, score model.RealtimeScore) error
}

// Engine applies packets to a repository.Store.
type Engine struct {
	store          repository.Store
	announcer      Announcer
	scores         ScoreSink
	transmitMarker string
	log            logger.Logger
}

// NewEngine creates an engine over store.
func NewEngine(store repository.Store, opts ...Option) *Engine {
	e := &Engine{store: store, transmitMarker: DefaultTransmitMarker}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("reconcile")
	}
	return e
}

// missing logs a packet that lacks its payload. It is not a failure.
func (e *Engine) missing(ctx context.Context, what string) error {
	e.log.Warn(ctx, "ignoring packet without payload",
		logger.String("payload", what),
		logger.Error(ErrMissingPayload),
	)
	return nil
}

// ProcessEvent applies one event.
func (e *Engine) ProcessEvent(ctx context.Context, ev *wire.Event) error {
	if ev == nil {
		return e.missing(ctx, "event")
	}
	switch o := ev.ChangedObject.(type) {
	case nil:
		return e.missing(ctx, "changed object")
	case *wire.UserAddedEvent:
		if o.User == nil {
			return e.missing(ctx, "user_added.user")
		}
		return e.userAdded(ctx, *o.User)
	case *wire.UserUpdatedEvent:
		if o.User == nil {
			return e.missing(ctx, "user_updated.user")
		}
		return e.store.Update(ctx, func(st *repository.State) error {
			if !st.UpdateUser(*o.User) {
				e.log.Debug(ctx, "update for unknown user", logger.String("guid", o.User.GUID))
			}
			return nil
		})
	case *wire.UserLeftEvent:
		if o.User == nil {
			return e.missing(ctx, "user_left.user")
		}
		return e.store.Update(ctx, func(st *repository.State) error {
			st.RemoveUser(*o.User)
			return nil
		})
	case *wire.MatchCreatedEvent:
		if o.Match == nil {
			return e.missing(ctx, "match_created.match")
		}
		return e.matchCreated(ctx, *o.Match)
	case *wire.MatchUpdatedEvent:
		if o.Match == nil {
			return e.missing(ctx, "match_updated.match")
		}
		return e.store.Update(ctx, func(st *repository.State) error {
			if !st.UpdateMatch(*o.Match) {
				e.log.Debug(ctx, "update for unknown match", logger.String("guid", o.Match.GUID))
			}
			return nil
		})
	case *wire.MatchDeletedEvent:
		if o.Match == nil {
			return e.missing(ctx, "match_deleted.match")
		}
		return e.store.Update(ctx, func(st *repository.State) error {
			st.RemoveMatch(o.Match.GUID)
			return nil
		})
	case *wire.HostAddedEvent:
		if o.Server == nil {
			return e.missing(ctx, "host_added.server")
		}
		return e.store.Update(ctx, func(st *repository.State) error {
			st.AddHost(*o.Server)
			return nil
		})
	case *wire.HostDeletedEvent:
		if o.Server == nil {
			return e.missing(ctx, "host_deleted.server")
		}
		return e.store.Update(ctx, func(st *repository.State) error {
			st.RemoveHostsNamed(o.Server.Name)
			return nil
		})
	case *wire.OpaqueEvent:
		return fmt.Errorf("%w: event %s", ErrUnimplementedKind, o.Name())
	default:
		return fmt.Errorf("%w: event %T", ErrUnimplementedKind, o)
	}
}

func (e *Engine) userAdded(ctx context.Context, u model.User) error {
	switch u.ClientType.Classify() {
	case model.ClientTypeCoordinator, model.ClientTypePlayer:
	default:
		e.log.Debug(ctx, "ignoring added user",
			logger.String("guid", u.GUID),
			logger.String("client_type", u.ClientType.String()),
		)
		return nil
	}
	return e.store.Update(ctx, func(st *repository.State) error {
		st.AddUser(u)
		return nil
	})
}

// matchCreated stores m extended with every non-transmit server connection,
// then announces it. The announce runs after the store lock is released.
func (e *Engine) matchCreated(ctx context.Context, m model.Match) error {
	stored := m.Clone()
	err := e.store.Update(ctx, func(st *repository.State) error {
		for _, sc := range st.ServerConnections {
			if strings.Contains(sc.Name, e.transmitMarker) || stored.HasUser(sc.GUID) {
				continue
			}
			stored.AssociatedUsers = append(stored.AssociatedUsers, sc.GUID)
		}
		st.PutMatch(stored)
		return nil
	})
	if err != nil {
		return err
	}
	if e.announcer == nil {
		return nil
	}

	if err := e.announcer.Announce(ctx, stored); err != nil {
		metrics.RecordAnnounce("failure")
		e.log.Error(ctx, "match announce failed",
			logger.String("match", stored.GUID),
			logger.Error(err),
		)
		return fmt.Errorf("%w: match %s: %w", ErrAnnounce, stored.GUID, err)
	}
	metrics.RecordAnnounce("success")
	return nil
}

// ProcessResponse applies one response. Only Connect is meaningful.
func (e *Engine) ProcessResponse(ctx context.Context, r *wire.Response) error {
	if r == nil {
		return e.missing(ctx, "response")
	}
	switch d := r.Details.(type) {
	case nil:
		return e.missing(ctx, "response details")
	case *wire.ConnectResponse:
		if r.Type != wire.ResponseSuccess {
			e.log.Warn(ctx, "connect rejected by server, keeping state",
				logger.String("message", d.Message),
				logger.String("responding_to", r.RespondingToPacketID),
			)
			return nil
		}
		if d.State == nil {
			return e.missing(ctx, "connect.state")
		}
		var counts repository.Counts
		err := e.store.Update(ctx, func(st *repository.State) error {
			st.Replace(d.State)
			counts = st.Counts()
			return nil
		})
		if err != nil {
			return err
		}
		e.log.Info(ctx, "state replaced from connect response",
			logger.String("message", d.Message),
			logger.Int("server_version", int(d.ServerVersion)),
			logger.Int("coordinators", counts.Coordinators),
			logger.Int("players", counts.Players),
			logger.Int("matches", counts.Matches),
			logger.Int("hosts", counts.KnownHosts),
		)
		return nil
	case *wire.OpaqueResponse:
		return fmt.Errorf("%w: response %s", ErrUnimplementedKind, d.Name())
	default:
		return fmt.Errorf("%w: response %T", ErrUnimplementedKind, d)
	}
}

// ProcessPush applies one push.
func (e *Engine) ProcessPush(ctx context.Context, p *wire.Push) error {
	if p == nil {
		return e.missing(ctx, "push")
	}
	switch d := p.Data.(type) {
	case nil:
		return e.missing(ctx, "push data")
	case *wire.RealtimeScorePush:
		return e.realtimeScore(ctx, d.Score)
	case *wire.SongFinishedPush:
		return e.songFinished(ctx, d)
	case *wire.OpaquePush:
		return fmt.Errorf("%w: push %s", ErrUnimplementedKind, d.Name())
	default:
		return fmt.Errorf("%w: push %T", ErrUnimplementedKind, d)
	}
}

func (e *Engine) realtimeScore(ctx context.Context, score model.RealtimeScore) error {
	var player model.User
	err := e.store.Update(ctx, func(st *repository.State) error {
		p, ok := st.FindPlayer(score.UserGUID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPlayer, score.UserGUID)
		}
		player = p
		st.PutScore(score)
		return nil
	})
	if err != nil {
		return err
	}
	if e.scores != nil {
		if err := e.scores.Record(ctx, player, score); err != nil {
			e.log.Warn(ctx, "score telemetry failed",
				logger.String("player", player.GUID),
				logger.Error(err),
			)
		}
	}
	return nil
}

func (e *Engine) songFinished(ctx context.Context, d *wire.SongFinishedPush) error {
	if d.Player == nil {
		return fmt.Errorf("%w: song finished without player", ErrMissingPayload)
	}
	guid := d.Player.GUID
	var last model.RealtimeScore
	err := e.store.View(ctx, func(st *repository.State) error {
		sc, ok := st.Score(guid)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingScoreRecord, guid)
		}
		last = sc
		return nil
	})
	if err != nil {
		return err
	}
	e.log.Info(ctx, "song finished",
		logger.String("player", d.Player.Name),
		logger.String("guid", guid),
		logger.Int("completion", int(d.Type)),
		logger.Int("score", int(d.Score)),
		logger.Int("last_realtime_score", int(last.Score)),
		logger.Float64("accuracy", float64(last.Accuracy)),
	)
	return nil
}
