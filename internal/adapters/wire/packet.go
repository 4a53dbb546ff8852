// Package wire implements the binary envelope exchanged with the tournament
// server. Packets use the protobuf wire format; the schema is fixed in this
// package and encoded by hand on top of protowire.
//
// Union members the relay does not model (qualifier events, most responses,
// leaderboard pushes, non-connect requests) are kept as opaque variants that
// carry their field number and raw bytes, so they survive a decode/encode
// round trip and can be reported by kind.
package wire

import "github.com/okian/tarelay/internal/domain/model"

// Kind names the payload carried by a packet.
type Kind string

// Payload kinds.
const (
	KindNone            Kind = "none"
	KindRequest         Kind = "request"
	KindResponse        Kind = "response"
	KindEvent           Kind = "event"
	KindPush            Kind = "push"
	KindAcknowledgement Kind = "acknowledgement"
)

// Packet is one message on the wire.
type Packet struct {
	ID      string
	From    string
	Payload Payload
}

// Kind reports the payload kind of p.
func (p *Packet) Kind() Kind {
	if p == nil || p.Payload == nil {
		return KindNone
	}
	return p.Payload.Kind()
}

// Payload is implemented by *Request, *Response, *Event, *Push and *Acknowledgement.
type Payload interface {
	Kind() Kind
}

// Request is sent to the server and answered with a Response.
type Request struct {
	Type RequestType
}

func (*Request) Kind() Kind { return KindRequest }

// RequestType is implemented by the request variants.
type RequestType interface {
	isRequestType()
}

// ConnectRequest registers a client with the server.
type ConnectRequest struct {
	User          *model.User
	Password      string
	ClientVersion int32
}

// OpaqueRequest is a request variant the relay does not model.
type OpaqueRequest struct {
	Field int32
	Raw   []byte
}

func (*ConnectRequest) isRequestType() {}
func (*OpaqueRequest) isRequestType()  {}

// ResponseType is the outcome of a request.
type ResponseType int32

const (
	ResponseFail    ResponseType = 0
	ResponseSuccess ResponseType = 1
)

// Response answers a Request, correlated by RespondingToPacketID.
type Response struct {
	Type                 ResponseType
	RespondingToPacketID string
	Details              ResponseDetails
}

func (*Response) Kind() Kind { return KindResponse }

// ResponseDetails is implemented by the response variants.
type ResponseDetails interface {
	isResponseDetails()
}

// ConnectResponse carries the full server state after a Connect request.
type ConnectResponse struct {
	State         *model.ServerState
	Message       string
	ServerVersion int32
}

// OpaqueResponse is a response variant the relay does not model.
type OpaqueResponse struct {
	Field int32
	Raw   []byte
}

// Name returns the protocol name of the variant.
func (o *OpaqueResponse) Name() string {
	switch o.Field {
	case fieldResponseLeaderboardScores:
		return "LeaderboardScores"
	case fieldResponseLoadedSong:
		return "LoadedSong"
	case fieldResponseModal:
		return "Modal"
	case fieldResponseModifyQualifier:
		return "ModifyQualifier"
	case fieldResponseImagePreloaded:
		return "ImagePreloaded"
	default:
		return "Unknown"
	}
}

func (*ConnectResponse) isResponseDetails() {}
func (*OpaqueResponse) isResponseDetails()  {}

// Event announces a change that already happened on the server.
type Event struct {
	ChangedObject ChangedObject
}

func (*Event) Kind() Kind { return KindEvent }

// ChangedObject is implemented by the event variants.
type ChangedObject interface {
	isChangedObject()
}

type (
	UserAddedEvent    struct{ User *model.User }
	UserUpdatedEvent  struct{ User *model.User }
	UserLeftEvent     struct{ User *model.User }
	MatchCreatedEvent struct{ Match *model.Match }
	MatchUpdatedEvent struct{ Match *model.Match }
	MatchDeletedEvent struct{ Match *model.Match }
	HostAddedEvent    struct{ Server *model.CoreServer }
	HostDeletedEvent  struct{ Server *model.CoreServer }
)

// OpaqueEvent is an event variant the relay does not model.
type OpaqueEvent struct {
	Field int32
	Raw   []byte
}

// Name returns the protocol name of the variant.
func (o *OpaqueEvent) Name() string {
	switch o.Field {
	case fieldEventQualifierCreated:
		return "QualifierCreated"
	case fieldEventQualifierUpdated:
		return "QualifierUpdated"
	case fieldEventQualifierDeleted:
		return "QualifierDeleted"
	default:
		return "Unknown"
	}
}

func (*UserAddedEvent) isChangedObject()    {}
func (*UserUpdatedEvent) isChangedObject()  {}
func (*UserLeftEvent) isChangedObject()     {}
func (*MatchCreatedEvent) isChangedObject() {}
func (*MatchUpdatedEvent) isChangedObject() {}
func (*MatchDeletedEvent) isChangedObject() {}
func (*HostAddedEvent) isChangedObject()    {}
func (*HostDeletedEvent) isChangedObject()  {}
func (*OpaqueEvent) isChangedObject()       {}

// Push delivers one-way data with no reply.
type Push struct {
	Data PushData
}

func (*Push) Kind() Kind { return KindPush }

// PushData is implemented by the push variants.
type PushData interface {
	isPushData()
}

// RealtimeScorePush carries a live score update.
type RealtimeScorePush struct {
	Score model.RealtimeScore
}

// CompletionType tells how a song ended.
type CompletionType int32

// SongFinishedPush reports that a player finished a song.
type SongFinishedPush struct {
	Player *model.User
	Type   CompletionType
	Score  int32
}

// OpaquePush is a push variant the relay does not model.
type OpaquePush struct {
	Field int32
	Raw   []byte
}

// Name returns the protocol name of the variant.
func (o *OpaquePush) Name() string {
	if o.Field == fieldPushLeaderboardScore {
		return "LeaderboardScore"
	}
	return "Unknown"
}

func (*RealtimeScorePush) isPushData() {}
func (*SongFinishedPush) isPushData()  {}
func (*OpaquePush) isPushData()        {}

// AckType classifies an acknowledgement.
type AckType int32

// Acknowledgement confirms receipt of a packet.
type Acknowledgement struct {
	PacketID string
	Type     AckType
}

func (*Acknowledgement) Kind() Kind { return KindAcknowledgement }
