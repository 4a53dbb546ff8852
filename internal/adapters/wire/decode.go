package wire

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/okian/tarelay/internal/domain/model"
	"google.golang.org/protobuf/encoding/protowire"
)

// Decode parses one packet. Unknown fields of users, teams, matches, levels
// and hosts are kept verbatim so a re-encoded entity carries them; elsewhere
// they are skipped. For repeated occurrences of a singular field the last
// one wins.
func Decode(b []byte) (*Packet, error) {
	p := &Packet{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldPacketID:
			return f.setString(&p.ID)
		case fieldPacketFrom:
			return f.setString(&p.From)
		case fieldPacketRequest:
			r, err := nested(f, decodeRequest)
			if err == nil {
				p.Payload = r
			}
			return err
		case fieldPacketResponse:
			r, err := nested(f, decodeResponse)
			if err == nil {
				p.Payload = r
			}
			return err
		case fieldPacketEvent:
			ev, err := nested(f, decodeEvent)
			if err == nil {
				p.Payload = ev
			}
			return err
		case fieldPacketPush:
			ps, err := nested(f, decodePush)
			if err == nil {
				p.Payload = ps
			}
			return err
		case fieldPacketAcknowledgement:
			a, err := nested(f, decodeAck)
			if err == nil {
				p.Payload = a
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return p, nil
}

type field struct {
	num protowire.Number
	typ protowire.Type
	val []byte
	// wire is the whole field: tag followed by value.
	wire []byte
}

func decodeFields(b []byte, fn func(*field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		f := field{num: num, typ: typ, val: b[n : n+m], wire: b[:n+m]}
		b = b[n+m:]
		if err := fn(&f); err != nil {
			return err
		}
	}
	return nil
}

func (f *field) want(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("field %d: %w %d", f.num, errWireType, f.typ)
	}
	return nil
}

func (f *field) bytes() ([]byte, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return nil, err
	}
	v, n := protowire.ConsumeBytes(f.val)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return v, nil
}

func (f *field) string() (string, error) {
	v, err := f.bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(v) {
		return "", fmt.Errorf("field %d: %w", f.num, errInvalidUTF)
	}
	return string(v), nil
}

func (f *field) varint() (uint64, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(f.val)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func (f *field) setString(dst *string) error {
	v, err := f.string()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (f *field) appendString(dst *[]string) error {
	v, err := f.string()
	if err != nil {
		return err
	}
	*dst = append(*dst, v)
	return nil
}

func (f *field) setInt64(dst *int64) error {
	v, err := f.varint()
	if err != nil {
		return err
	}
	*dst = int64(v)
	return nil
}

func (f *field) setBool(dst *bool) error {
	v, err := f.varint()
	if err != nil {
		return err
	}
	*dst = protowire.DecodeBool(v)
	return nil
}

func (f *field) setFloat32(dst *float32) error {
	if err := f.want(protowire.Fixed32Type); err != nil {
		return err
	}
	v, n := protowire.ConsumeFixed32(f.val)
	if n < 0 {
		return protowire.ParseError(n)
	}
	*dst = math.Float32frombits(v)
	return nil
}

// keep appends the encoded field to dst.
func (f *field) keep(dst *[]byte) error {
	*dst = append(*dst, f.wire...)
	return nil
}

func (f *field) raw() ([]byte, error) {
	v, err := f.bytes()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v...), nil
}

// setInt32 stores a varint into any int32-backed type; enums keep their raw value.
func setInt32[T ~int32](f *field, dst *T) error {
	v, err := f.varint()
	if err != nil {
		return err
	}
	*dst = T(int32(v))
	return nil
}

func nested[T any](f *field, decode func([]byte) (*T, error)) (*T, error) {
	b, err := f.bytes()
	if err != nil {
		return nil, err
	}
	return decode(b)
}

func decodeRequest(b []byte) (*Request, error) {
	r := &Request{}
	err := decodeFields(b, func(f *field) error {
		switch {
		case f.num == fieldRequestConnect:
			c, err := nested(f, decodeConnectRequest)
			if err == nil {
				r.Type = c
			}
			return err
		case f.num > fieldRequestConnect && f.num <= fieldRequestOpaqueMax:
			raw, err := f.raw()
			if err == nil {
				r.Type = &OpaqueRequest{Field: int32(f.num), Raw: raw}
			}
			return err
		}
		return nil
	})
	return r, err
}

func decodeConnectRequest(b []byte) (*ConnectRequest, error) {
	c := &ConnectRequest{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldConnectUser:
			u, err := nested(f, decodeUser)
			if err == nil {
				c.User = u
			}
			return err
		case fieldConnectPassword:
			return f.setString(&c.Password)
		case fieldConnectClientVersion:
			return setInt32(f, &c.ClientVersion)
		}
		return nil
	})
	return c, err
}

func decodeResponse(b []byte) (*Response, error) {
	r := &Response{}
	err := decodeFields(b, func(f *field) error {
		switch {
		case f.num == fieldResponseType:
			return setInt32(f, &r.Type)
		case f.num == fieldResponseRespondingTo:
			return f.setString(&r.RespondingToPacketID)
		case f.num == fieldResponseConnect:
			c, err := nested(f, decodeConnectResponse)
			if err == nil {
				r.Details = c
			}
			return err
		case f.num >= fieldResponseLeaderboardScores && f.num <= fieldResponseImagePreloaded:
			raw, err := f.raw()
			if err == nil {
				r.Details = &OpaqueResponse{Field: int32(f.num), Raw: raw}
			}
			return err
		}
		return nil
	})
	return r, err
}

func decodeConnectResponse(b []byte) (*ConnectResponse, error) {
	c := &ConnectResponse{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldConnectResponseState:
			s, err := nested(f, decodeState)
			if err == nil {
				c.State = s
			}
			return err
		case fieldConnectResponseMessage:
			return f.setString(&c.Message)
		case fieldConnectResponseServerVersion:
			return setInt32(f, &c.ServerVersion)
		}
		return nil
	})
	return c, err
}

func decodeState(b []byte) (*model.ServerState, error) {
	s := &model.ServerState{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldStateServerSettings:
			st, err := nested(f, decodeSettings)
			if err == nil {
				s.ServerSettings = st
			}
			return err
		case fieldStateUsers:
			u, err := nested(f, decodeUser)
			if err == nil {
				s.Users = append(s.Users, *u)
			}
			return err
		case fieldStateMatches:
			m, err := nested(f, decodeMatch)
			if err == nil {
				s.Matches = append(s.Matches, *m)
			}
			return err
		case fieldStateKnownHosts:
			h, err := nested(f, decodeServer)
			if err == nil {
				s.KnownHosts = append(s.KnownHosts, *h)
			}
			return err
		}
		return nil
	})
	return s, err
}

func decodeSettings(b []byte) (*model.ServerSettings, error) {
	s := &model.ServerSettings{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldSettingsServerName:
			return f.setString(&s.ServerName)
		case fieldSettingsPassword:
			return f.setString(&s.Password)
		case fieldSettingsEnableTeams:
			return f.setBool(&s.EnableTeams)
		case fieldSettingsTeams:
			t, err := nested(f, decodeTeam)
			if err == nil {
				s.Teams = append(s.Teams, *t)
			}
			return err
		case fieldSettingsScoreUpdateFrequency:
			return setInt32(f, &s.ScoreUpdateFrequency)
		}
		return nil
	})
	return s, err
}

func decodeUser(b []byte) (*model.User, error) {
	u := &model.User{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldUserGUID:
			return f.setString(&u.GUID)
		case fieldUserName:
			return f.setString(&u.Name)
		case fieldUserUserID:
			return f.setString(&u.UserID)
		case fieldUserClientType:
			return setInt32(f, &u.ClientType)
		case fieldUserTeam:
			t, err := nested(f, decodeTeam)
			if err == nil {
				u.Team = t
			}
			return err
		case fieldUserPlayState:
			return setInt32(f, &u.PlayState)
		case fieldUserDownloadState:
			return setInt32(f, &u.DownloadState)
		case fieldUserModList:
			return f.appendString(&u.ModList)
		case fieldUserStreamDelayMs:
			return f.setInt64(&u.StreamDelayMs)
		case fieldUserStreamSyncStartMs:
			return f.setInt64(&u.StreamSyncStartMs)
		}
		return f.keep(&u.Unknown)
	})
	return u, err
}

func decodeTeam(b []byte) (*model.Team, error) {
	t := &model.Team{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldTeamID:
			return f.setString(&t.ID)
		case fieldTeamName:
			return f.setString(&t.Name)
		}
		return f.keep(&t.Unknown)
	})
	return t, err
}

func decodeMatch(b []byte) (*model.Match, error) {
	m := &model.Match{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldMatchGUID:
			return f.setString(&m.GUID)
		case fieldMatchAssociatedUsers:
			return f.appendString(&m.AssociatedUsers)
		case fieldMatchLeader:
			return f.setString(&m.Leader)
		case fieldMatchSelectedLevel:
			l, err := nested(f, decodeLevel)
			if err == nil {
				m.SelectedLevel = l
			}
			return err
		case fieldMatchSelectedDifficulty:
			return setInt32(f, &m.SelectedDifficulty)
		}
		return f.keep(&m.Unknown)
	})
	return m, err
}

func decodeLevel(b []byte) (*model.PreviewBeatmapLevel, error) {
	l := &model.PreviewBeatmapLevel{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldLevelID:
			return f.setString(&l.LevelID)
		case fieldLevelName:
			return f.setString(&l.Name)
		case fieldLevelLoaded:
			return f.setBool(&l.Loaded)
		}
		return f.keep(&l.Unknown)
	})
	return l, err
}

func decodeServer(b []byte) (*model.CoreServer, error) {
	s := &model.CoreServer{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldServerName:
			return f.setString(&s.Name)
		case fieldServerAddress:
			return f.setString(&s.Address)
		case fieldServerPort:
			return setInt32(f, &s.Port)
		case fieldServerWebsocketPort:
			return setInt32(f, &s.WebsocketPort)
		}
		return f.keep(&s.Unknown)
	})
	return s, err
}

// entity unwraps the single-field wrapper every event variant uses.
func entity[T any](b []byte, decode func([]byte) (*T, error)) (*T, error) {
	var out *T
	err := decodeFields(b, func(f *field) error {
		if f.num != fieldEventEntity {
			return nil
		}
		v, err := nested(f, decode)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

func decodeEvent(b []byte) (*Event, error) {
	ev := &Event{}
	err := decodeFields(b, func(f *field) error {
		inner, err := f.bytes()
		if err != nil {
			if f.num >= fieldEventUserAdded && f.num <= fieldEventHostDeleted {
				return err
			}
			return nil
		}
		switch f.num {
		case fieldEventUserAdded, fieldEventUserUpdated, fieldEventUserLeft:
			u, err := entity(inner, decodeUser)
			if err != nil {
				return err
			}
			switch f.num {
			case fieldEventUserAdded:
				ev.ChangedObject = &UserAddedEvent{User: u}
			case fieldEventUserUpdated:
				ev.ChangedObject = &UserUpdatedEvent{User: u}
			default:
				ev.ChangedObject = &UserLeftEvent{User: u}
			}
		case fieldEventMatchCreated, fieldEventMatchUpdated, fieldEventMatchDeleted:
			m, err := entity(inner, decodeMatch)
			if err != nil {
				return err
			}
			switch f.num {
			case fieldEventMatchCreated:
				ev.ChangedObject = &MatchCreatedEvent{Match: m}
			case fieldEventMatchUpdated:
				ev.ChangedObject = &MatchUpdatedEvent{Match: m}
			default:
				ev.ChangedObject = &MatchDeletedEvent{Match: m}
			}
		case fieldEventHostAdded, fieldEventHostDeleted:
			s, err := entity(inner, decodeServer)
			if err != nil {
				return err
			}
			if f.num == fieldEventHostAdded {
				ev.ChangedObject = &HostAddedEvent{Server: s}
			} else {
				ev.ChangedObject = &HostDeletedEvent{Server: s}
			}
		case fieldEventQualifierCreated, fieldEventQualifierUpdated, fieldEventQualifierDeleted:
			ev.ChangedObject = &OpaqueEvent{Field: int32(f.num), Raw: append([]byte(nil), inner...)}
		}
		return nil
	})
	return ev, err
}

func decodePush(b []byte) (*Push, error) {
	p := &Push{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldPushLeaderboardScore:
			raw, err := f.raw()
			if err == nil {
				p.Data = &OpaquePush{Field: int32(f.num), Raw: raw}
			}
			return err
		case fieldPushRealtimeScore:
			s, err := nested(f, decodeScore)
			if err == nil {
				p.Data = &RealtimeScorePush{Score: *s}
			}
			return err
		case fieldPushSongFinished:
			sf, err := nested(f, decodeSongFinished)
			if err == nil {
				p.Data = sf
			}
			return err
		}
		return nil
	})
	return p, err
}

func decodeSongFinished(b []byte) (*SongFinishedPush, error) {
	sf := &SongFinishedPush{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldSongFinishedPlayer:
			u, err := nested(f, decodeUser)
			if err == nil {
				sf.Player = u
			}
			return err
		case fieldSongFinishedType:
			return setInt32(f, &sf.Type)
		case fieldSongFinishedScore:
			return setInt32(f, &sf.Score)
		}
		return nil
	})
	return sf, err
}

func decodeScore(b []byte) (*model.RealtimeScore, error) {
	s := &model.RealtimeScore{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldScoreUserGUID:
			return f.setString(&s.UserGUID)
		case fieldScoreScore:
			return setInt32(f, &s.Score)
		case fieldScoreScoreWithModifiers:
			return setInt32(f, &s.ScoreWithModifiers)
		case fieldScoreMaxScore:
			return setInt32(f, &s.MaxScore)
		case fieldScoreMaxScoreWithModifiers:
			return setInt32(f, &s.MaxScoreWithModifiers)
		case fieldScoreCombo:
			return setInt32(f, &s.Combo)
		case fieldScorePlayerHealth:
			return f.setFloat32(&s.PlayerHealth)
		case fieldScoreAccuracy:
			return f.setFloat32(&s.Accuracy)
		case fieldScoreSongPosition:
			return f.setFloat32(&s.SongPosition)
		case fieldScoreNotesMissed:
			return setInt32(f, &s.NotesMissed)
		case fieldScoreBadCuts:
			return setInt32(f, &s.BadCuts)
		case fieldScoreBombHits:
			return setInt32(f, &s.BombHits)
		case fieldScoreWallHits:
			return setInt32(f, &s.WallHits)
		case fieldScoreMaxCombo:
			return setInt32(f, &s.MaxCombo)
		case fieldScoreLeftHand:
			h, err := nested(f, decodeHand)
			if err == nil {
				s.LeftHand = h
			}
			return err
		case fieldScoreRightHand:
			h, err := nested(f, decodeHand)
			if err == nil {
				s.RightHand = h
			}
			return err
		}
		return nil
	})
	return s, err
}

func decodeHand(b []byte) (*model.ScoreTrackerHand, error) {
	h := &model.ScoreTrackerHand{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldHandHit:
			return setInt32(f, &h.Hit)
		case fieldHandMiss:
			return setInt32(f, &h.Miss)
		case fieldHandBadCut:
			return setInt32(f, &h.BadCut)
		}
		return nil
	})
	return h, err
}

func decodeAck(b []byte) (*Acknowledgement, error) {
	a := &Acknowledgement{}
	err := decodeFields(b, func(f *field) error {
		switch f.num {
		case fieldAckPacketID:
			return f.setString(&a.PacketID)
		case fieldAckType:
			return setInt32(f, &a.Type)
		}
		return nil
	})
	return a, err
}
