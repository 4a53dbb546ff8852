package model

import "slices"

// Team is a named group players can belong to.
type Team struct {
	ID      string
	Name    string
	Unknown []byte
}

// User is any client connected to the origin server.
type User struct {
	GUID              string
	Name              string
	UserID            string
	ClientType        ClientType
	Team              *Team
	PlayState         PlayState
	DownloadState     DownloadState
	ModList           []string
	StreamDelayMs     int64
	StreamSyncStartMs int64
	Unknown           []byte
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	c := u
	if u.Team != nil {
		t := *u.Team
		t.Unknown = slices.Clone(t.Unknown)
		c.Team = &t
	}
	if u.ModList != nil {
		c.ModList = append([]string(nil), u.ModList...)
	}
	c.Unknown = slices.Clone(u.Unknown)
	return c
}

// CoreServer is a remote host known to the origin. Hosts are identified by name.
type CoreServer struct {
	Name          string
	Address       string
	Port          int32
	WebsocketPort int32
	Unknown       []byte
}

// ServerSettings are the origin's global settings as reported on connect.
type ServerSettings struct {
	ServerName           string
	Password             string
	EnableTeams          bool
	Teams                []Team
	ScoreUpdateFrequency int32
}

// ServerState is the full snapshot the origin sends in its Connect response.
type ServerState struct {
	ServerSettings *ServerSettings
	Users          []User
	Matches        []Match
	KnownHosts     []CoreServer
}
