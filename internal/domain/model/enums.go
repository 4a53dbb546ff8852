// Package model contains the tournament entities mirrored by the relay.
package model

// ClientType is the wire-level role of a connected user.
type ClientType int32

// Known client types. ClientTypeUnrecognized never appears on the wire; it is
// what Classify returns for values outside the known domain.
const (
	ClientTypePlayer              ClientType = 0
	ClientTypeCoordinator         ClientType = 1
	ClientTypeWebsocketConnection ClientType = 2

	ClientTypeUnrecognized ClientType = -1
)

// Classify maps a raw wire value onto the known domain.
func (c ClientType) Classify() ClientType {
	switch c {
	case ClientTypePlayer, ClientTypeCoordinator, ClientTypeWebsocketConnection:
		return c
	default:
		return ClientTypeUnrecognized
	}
}

func (c ClientType) String() string {
	switch c.Classify() {
	case ClientTypePlayer:
		return "Player"
	case ClientTypeCoordinator:
		return "Coordinator"
	case ClientTypeWebsocketConnection:
		return "WebsocketConnection"
	default:
		return "Unrecognized"
	}
}

// PlayState reports whether a player is currently in a song.
type PlayState int32

const (
	PlayStateWaiting PlayState = 0
	PlayStateInGame  PlayState = 1

	PlayStateUnrecognized PlayState = -1
)

// Classify maps a raw wire value onto the known domain.
func (p PlayState) Classify() PlayState {
	switch p {
	case PlayStateWaiting, PlayStateInGame:
		return p
	default:
		return PlayStateUnrecognized
	}
}

func (p PlayState) String() string {
	switch p.Classify() {
	case PlayStateWaiting:
		return "Waiting"
	case PlayStateInGame:
		return "InGame"
	default:
		return "Unrecognized"
	}
}

// DownloadState tracks a player's progress fetching the selected level.
type DownloadState int32

const (
	DownloadStateNone          DownloadState = 0
	DownloadStateDownloading   DownloadState = 1
	DownloadStateDownloaded    DownloadState = 2
	DownloadStateDownloadError DownloadState = 3

	DownloadStateUnrecognized DownloadState = -1
)

// Classify maps a raw wire value onto the known domain.
func (d DownloadState) Classify() DownloadState {
	switch d {
	case DownloadStateNone, DownloadStateDownloading, DownloadStateDownloaded, DownloadStateDownloadError:
		return d
	default:
		return DownloadStateUnrecognized
	}
}

func (d DownloadState) String() string {
	switch d.Classify() {
	case DownloadStateNone:
		return "None"
	case DownloadStateDownloading:
		return "Downloading"
	case DownloadStateDownloaded:
		return "Downloaded"
	case DownloadStateDownloadError:
		return "DownloadError"
	default:
		return "Unrecognized"
	}
}
