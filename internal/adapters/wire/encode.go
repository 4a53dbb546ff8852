package wire

import (
	"fmt"
	"math"

	"github.com/okian/tarelay/internal/domain/model"
	"google.golang.org/protobuf/encoding/protowire"
)

// Encode serializes p. Zero-valued scalars are omitted as in proto3.
func Encode(p *Packet) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil packet", ErrInvalidPacket)
	}
	e := &encoder{buf: make([]byte, 0, 128)}
	e.string(fieldPacketID, p.ID)
	e.string(fieldPacketFrom, p.From)

	var err error
	switch pl := p.Payload.(type) {
	case nil:
	case *Request:
		if pl == nil {
			return nil, invalid("nil request")
		}
		err = e.message(fieldPacketRequest, func(e *encoder) error { return e.request(pl) })
	case *Response:
		if pl == nil {
			return nil, invalid("nil response")
		}
		err = e.message(fieldPacketResponse, func(e *encoder) error { return e.response(pl) })
	case *Event:
		if pl == nil {
			return nil, invalid("nil event")
		}
		err = e.message(fieldPacketEvent, func(e *encoder) error { return e.event(pl) })
	case *Push:
		if pl == nil {
			return nil, invalid("nil push")
		}
		err = e.message(fieldPacketPush, func(e *encoder) error { return e.push(pl) })
	case *Acknowledgement:
		if pl == nil {
			return nil, invalid("nil acknowledgement")
		}
		err = e.message(fieldPacketAcknowledgement, func(e *encoder) error {
			e.string(fieldAckPacketID, pl.PacketID)
			e.int32(fieldAckType, int32(pl.Type))
			return nil
		})
	default:
		return nil, invalid(fmt.Sprintf("unsupported payload %T", pl))
	}
	if err != nil {
		return nil, err
	}
	return e.buf, nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPacket, reason)
}

type encoder struct {
	buf []byte
}

func (e *encoder) tag(num int32, typ protowire.Type) {
	e.buf = protowire.AppendTag(e.buf, protowire.Number(num), typ)
}

func (e *encoder) string(num int32, v string) {
	if v == "" {
		return
	}
	e.tag(num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

func (e *encoder) strings(num int32, vs []string) {
	for _, v := range vs {
		e.tag(num, protowire.BytesType)
		e.buf = protowire.AppendString(e.buf, v)
	}
}

func (e *encoder) int32(num int32, v int32) {
	if v == 0 {
		return
	}
	e.tag(num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, uint64(int64(v)))
}

func (e *encoder) int64(num int32, v int64) {
	if v == 0 {
		return
	}
	e.tag(num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, uint64(v))
}

func (e *encoder) bool(num int32, v bool) {
	if !v {
		return
	}
	e.tag(num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeBool(v))
}

func (e *encoder) float32(num int32, v float32) {
	bits := math.Float32bits(v)
	if bits == 0 {
		return
	}
	e.tag(num, protowire.Fixed32Type)
	e.buf = protowire.AppendFixed32(e.buf, bits)
}

func (e *encoder) raw(num int32, b []byte) {
	e.tag(num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// unknown writes back fields kept by the decoder.
func (e *encoder) unknown(b []byte) {
	e.buf = append(e.buf, b...)
}

// message writes a length-delimited submessage produced by fn. It is always
// emitted, even when empty, so presence survives the round trip.
func (e *encoder) message(num int32, fn func(*encoder) error) error {
	sub := &encoder{}
	if err := fn(sub); err != nil {
		return err
	}
	e.raw(num, sub.buf)
	return nil
}

func (e *encoder) request(r *Request) error {
	switch t := r.Type.(type) {
	case nil:
		return nil
	case *ConnectRequest:
		if t == nil {
			return invalid("nil connect request")
		}
		return e.message(fieldRequestConnect, func(e *encoder) error {
			if t.User != nil {
				_ = e.message(fieldConnectUser, func(e *encoder) error { e.user(t.User); return nil })
			}
			e.string(fieldConnectPassword, t.Password)
			e.int32(fieldConnectClientVersion, t.ClientVersion)
			return nil
		})
	case *OpaqueRequest:
		if t == nil || t.Field <= fieldRequestConnect || t.Field > fieldRequestOpaqueMax {
			return invalid("opaque request field out of range")
		}
		e.raw(t.Field, t.Raw)
		return nil
	default:
		return invalid(fmt.Sprintf("unsupported request %T", t))
	}
}

func (e *encoder) response(r *Response) error {
	e.int32(fieldResponseType, int32(r.Type))
	e.string(fieldResponseRespondingTo, r.RespondingToPacketID)
	switch d := r.Details.(type) {
	case nil:
		return nil
	case *ConnectResponse:
		if d == nil {
			return invalid("nil connect response")
		}
		return e.message(fieldResponseConnect, func(e *encoder) error {
			if d.State != nil {
				_ = e.message(fieldConnectResponseState, func(e *encoder) error { e.state(d.State); return nil })
			}
			e.string(fieldConnectResponseMessage, d.Message)
			e.int32(fieldConnectResponseServerVersion, d.ServerVersion)
			return nil
		})
	case *OpaqueResponse:
		if d == nil || d.Field < fieldResponseLeaderboardScores || d.Field > fieldResponseImagePreloaded {
			return invalid("opaque response field out of range")
		}
		e.raw(d.Field, d.Raw)
		return nil
	default:
		return invalid(fmt.Sprintf("unsupported response %T", d))
	}
}

func (e *encoder) event(ev *Event) error {
	switch o := ev.ChangedObject.(type) {
	case nil:
		return nil
	case *UserAddedEvent:
		return e.userEvent(fieldEventUserAdded, o == nil, func() *model.User { return o.User })
	case *UserUpdatedEvent:
		return e.userEvent(fieldEventUserUpdated, o == nil, func() *model.User { return o.User })
	case *UserLeftEvent:
		return e.userEvent(fieldEventUserLeft, o == nil, func() *model.User { return o.User })
	case *MatchCreatedEvent:
		return e.matchEvent(fieldEventMatchCreated, o == nil, func() *model.Match { return o.Match })
	case *MatchUpdatedEvent:
		return e.matchEvent(fieldEventMatchUpdated, o == nil, func() *model.Match { return o.Match })
	case *MatchDeletedEvent:
		return e.matchEvent(fieldEventMatchDeleted, o == nil, func() *model.Match { return o.Match })
	case *HostAddedEvent:
		return e.hostEvent(fieldEventHostAdded, o == nil, func() *model.CoreServer { return o.Server })
	case *HostDeletedEvent:
		return e.hostEvent(fieldEventHostDeleted, o == nil, func() *model.CoreServer { return o.Server })
	case *OpaqueEvent:
		if o == nil || o.Field < fieldEventQualifierCreated || o.Field > fieldEventQualifierDeleted {
			return invalid("opaque event field out of range")
		}
		e.raw(o.Field, o.Raw)
		return nil
	default:
		return invalid(fmt.Sprintf("unsupported event %T", o))
	}
}

func (e *encoder) userEvent(num int32, isNil bool, get func() *model.User) error {
	if isNil {
		return invalid("nil user event")
	}
	return e.message(num, func(e *encoder) error {
		if u := get(); u != nil {
			_ = e.message(fieldEventEntity, func(e *encoder) error { e.user(u); return nil })
		}
		return nil
	})
}

func (e *encoder) matchEvent(num int32, isNil bool, get func() *model.Match) error {
	if isNil {
		return invalid("nil match event")
	}
	return e.message(num, func(e *encoder) error {
		if m := get(); m != nil {
			_ = e.message(fieldEventEntity, func(e *encoder) error { e.match(m); return nil })
		}
		return nil
	})
}

func (e *encoder) hostEvent(num int32, isNil bool, get func() *model.CoreServer) error {
	if isNil {
		return invalid("nil host event")
	}
	return e.message(num, func(e *encoder) error {
		if s := get(); s != nil {
			_ = e.message(fieldEventEntity, func(e *encoder) error { e.server(s); return nil })
		}
		return nil
	})
}

func (e *encoder) push(p *Push) error {
	switch d := p.Data.(type) {
	case nil:
		return nil
	case *RealtimeScorePush:
		if d == nil {
			return invalid("nil realtime score push")
		}
		return e.message(fieldPushRealtimeScore, func(e *encoder) error { e.score(&d.Score); return nil })
	case *SongFinishedPush:
		if d == nil {
			return invalid("nil song finished push")
		}
		return e.message(fieldPushSongFinished, func(e *encoder) error {
			if d.Player != nil {
				_ = e.message(fieldSongFinishedPlayer, func(e *encoder) error { e.user(d.Player); return nil })
			}
			e.int32(fieldSongFinishedType, int32(d.Type))
			e.int32(fieldSongFinishedScore, d.Score)
			return nil
		})
	case *OpaquePush:
		if d == nil || d.Field != fieldPushLeaderboardScore {
			return invalid("opaque push field out of range")
		}
		e.raw(d.Field, d.Raw)
		return nil
	default:
		return invalid(fmt.Sprintf("unsupported push %T", d))
	}
}

func (e *encoder) user(u *model.User) {
	e.string(fieldUserGUID, u.GUID)
	e.string(fieldUserName, u.Name)
	e.string(fieldUserUserID, u.UserID)
	e.int32(fieldUserClientType, int32(u.ClientType))
	if u.Team != nil {
		_ = e.message(fieldUserTeam, func(e *encoder) error { e.team(u.Team); return nil })
	}
	e.int32(fieldUserPlayState, int32(u.PlayState))
	e.int32(fieldUserDownloadState, int32(u.DownloadState))
	e.strings(fieldUserModList, u.ModList)
	e.int64(fieldUserStreamDelayMs, u.StreamDelayMs)
	e.int64(fieldUserStreamSyncStartMs, u.StreamSyncStartMs)
	e.unknown(u.Unknown)
}

func (e *encoder) team(t *model.Team) {
	e.string(fieldTeamID, t.ID)
	e.string(fieldTeamName, t.Name)
	e.unknown(t.Unknown)
}

func (e *encoder) match(m *model.Match) {
	e.string(fieldMatchGUID, m.GUID)
	e.strings(fieldMatchAssociatedUsers, m.AssociatedUsers)
	e.string(fieldMatchLeader, m.Leader)
	if m.SelectedLevel != nil {
		l := m.SelectedLevel
		_ = e.message(fieldMatchSelectedLevel, func(e *encoder) error {
			e.string(fieldLevelID, l.LevelID)
			e.string(fieldLevelName, l.Name)
			e.bool(fieldLevelLoaded, l.Loaded)
			e.unknown(l.Unknown)
			return nil
		})
	}
	e.int32(fieldMatchSelectedDifficulty, m.SelectedDifficulty)
	e.unknown(m.Unknown)
}

func (e *encoder) server(s *model.CoreServer) {
	e.string(fieldServerName, s.Name)
	e.string(fieldServerAddress, s.Address)
	e.int32(fieldServerPort, s.Port)
	e.int32(fieldServerWebsocketPort, s.WebsocketPort)
	e.unknown(s.Unknown)
}

func (e *encoder) state(s *model.ServerState) {
	if s.ServerSettings != nil {
		st := s.ServerSettings
		_ = e.message(fieldStateServerSettings, func(e *encoder) error {
			e.string(fieldSettingsServerName, st.ServerName)
			e.string(fieldSettingsPassword, st.Password)
			e.bool(fieldSettingsEnableTeams, st.EnableTeams)
			for i := range st.Teams {
				t := &st.Teams[i]
				_ = e.message(fieldSettingsTeams, func(e *encoder) error { e.team(t); return nil })
			}
			e.int32(fieldSettingsScoreUpdateFrequency, st.ScoreUpdateFrequency)
			return nil
		})
	}
	for i := range s.Users {
		u := &s.Users[i]
		_ = e.message(fieldStateUsers, func(e *encoder) error { e.user(u); return nil })
	}
	for i := range s.Matches {
		m := &s.Matches[i]
		_ = e.message(fieldStateMatches, func(e *encoder) error { e.match(m); return nil })
	}
	for i := range s.KnownHosts {
		h := &s.KnownHosts[i]
		_ = e.message(fieldStateKnownHosts, func(e *encoder) error { e.server(h); return nil })
	}
}

func (e *encoder) score(s *model.RealtimeScore) {
	e.string(fieldScoreUserGUID, s.UserGUID)
	e.int32(fieldScoreScore, s.Score)
	e.int32(fieldScoreScoreWithModifiers, s.ScoreWithModifiers)
	e.int32(fieldScoreMaxScore, s.MaxScore)
	e.int32(fieldScoreMaxScoreWithModifiers, s.MaxScoreWithModifiers)
	e.int32(fieldScoreCombo, s.Combo)
	e.float32(fieldScorePlayerHealth, s.PlayerHealth)
	e.float32(fieldScoreAccuracy, s.Accuracy)
	e.float32(fieldScoreSongPosition, s.SongPosition)
	e.int32(fieldScoreNotesMissed, s.NotesMissed)
	e.int32(fieldScoreBadCuts, s.BadCuts)
	e.int32(fieldScoreBombHits, s.BombHits)
	e.int32(fieldScoreWallHits, s.WallHits)
	e.int32(fieldScoreMaxCombo, s.MaxCombo)
	if s.LeftHand != nil {
		_ = e.message(fieldScoreLeftHand, func(e *encoder) error { e.hand(s.LeftHand); return nil })
	}
	if s.RightHand != nil {
		_ = e.message(fieldScoreRightHand, func(e *encoder) error { e.hand(s.RightHand); return nil })
	}
}

func (e *encoder) hand(h *model.ScoreTrackerHand) {
	e.int32(fieldHandHit, h.Hit)
	e.int32(fieldHandMiss, h.Miss)
	e.int32(fieldHandBadCut, h.BadCut)
}
