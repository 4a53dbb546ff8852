// Package view projects the mirrored state into the shapes served by the
// read API. Match user references are resolved here, at read time.
package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/domain/model"
)

// Team is a team as shown to readers.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a user as shown to readers. Enum values are rendered by name.
type User struct {
	GUID              string   `json:"guid"`
	Name              string   `json:"name"`
	UserID            string   `json:"user_id"`
	ClientType        string   `json:"client_type"`
	PlayState         string   `json:"play_state"`
	DownloadState     string   `json:"download_state"`
	Team              *Team    `json:"team,omitempty"`
	ModList           []string `json:"mod_list"`
	StreamDelayMs     int64    `json:"stream_delay_ms"`
	StreamSyncStartMs int64    `json:"stream_sync_start_ms"`
}

// Map is the level currently selected in a match.
type Map struct {
	Hash       string `json:"hash"`
	Name       string `json:"name"`
	Difficulty int32  `json:"difficulty"`
}

// Match is a match with its user references resolved.
type Match struct {
	GUID         string                `json:"guid"`
	Leader       string                `json:"leader,omitempty"`
	Players      []User                `json:"players"`
	Coordinators []User                `json:"coordinators"`
	Teams        []Team                `json:"teams"`
	CurrentMap   *Map                  `json:"current_map,omitempty"`
	Scores       []model.RealtimeScore `json:"scores"`
}

// Host is a known core server.
type Host struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	Port          int32  `json:"port"`
	WebsocketPort int32  `json:"websocket_port"`
}

// State is the full read projection.
type State struct {
	ServerConnections []User  `json:"server_connections"`
	Coordinators      []User  `json:"coordinators"`
	Players           []User  `json:"players"`
	Matches           []Match `json:"matches"`
	Hosts             []Host  `json:"hosts"`
}

// Project renders st. It only reads st.
func Project(st *repository.State) State {
	out := State{
		ServerConnections: users(st.ServerConnections),
		Coordinators:      users(st.Coordinators),
		Players:           users(st.Players),
		Matches:           make([]Match, 0, len(st.Matches)),
		Hosts:             make([]Host, 0, len(st.KnownHosts)),
	}
	for _, m := range st.Matches {
		out.Matches = append(out.Matches, ProjectMatch(st, m))
	}
	for _, h := range st.KnownHosts {
		out.Hosts = append(out.Hosts, Host{
			Name:          h.Name,
			Address:       h.Address,
			Port:          h.Port,
			WebsocketPort: h.WebsocketPort,
		})
	}
	return out
}

// ProjectMatch resolves m against the users and scores in st. Associated
// guids that match no player or coordinator are skipped.
func ProjectMatch(st *repository.State, m model.Match) Match {
	out := Match{
		GUID:         m.GUID,
		Leader:       m.Leader,
		Players:      []User{},
		Coordinators: []User{},
		Teams:        []Team{},
		Scores:       []model.RealtimeScore{},
		CurrentMap:   currentMap(m),
	}
	for _, guid := range m.AssociatedUsers {
		if p, ok := find(st.Players, guid); ok {
			out.Players = append(out.Players, user(p))
			if p.Team != nil {
				out.Teams = append(out.Teams, Team{ID: p.Team.ID, Name: p.Team.Name})
			}
			if sc, ok := st.Score(guid); ok {
				out.Scores = append(out.Scores, sc.Clone())
			}
			continue
		}
		if c, ok := find(st.Coordinators, guid); ok {
			out.Coordinators = append(out.Coordinators, user(c))
		}
	}
	slices.SortFunc(out.Teams, func(a, b Team) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	out.Teams = slices.Compact(out.Teams)
	return out
}

// MapHash returns the hash part of a level id: its last "_" separated segment.
func MapHash(levelID string) string {
	if i := strings.LastIndexByte(levelID, '_'); i >= 0 {
		return levelID[i+1:]
	}
	return levelID
}

func currentMap(m model.Match) *Map {
	if m.SelectedLevel == nil {
		return nil
	}
	return &Map{
		Hash:       MapHash(m.SelectedLevel.LevelID),
		Name:       m.SelectedLevel.Name,
		Difficulty: m.SelectedDifficulty,
	}
}

func find(in []model.User, guid string) (model.User, bool) {
	i := slices.IndexFunc(in, func(u model.User) bool { return u.GUID == guid })
	if i < 0 {
		return model.User{}, false
	}
	return in[i], true
}

func users(in []model.User) []User {
	out := make([]User, 0, len(in))
	for _, u := range in {
		out = append(out, user(u))
	}
	return out
}

func user(u model.User) User {
	v := User{
		GUID:              u.GUID,
		Name:              u.Name,
		UserID:            u.UserID,
		ClientType:        u.ClientType.String(),
		PlayState:         u.PlayState.String(),
		DownloadState:     u.DownloadState.String(),
		ModList:           slices.Clone(u.ModList),
		StreamDelayMs:     u.StreamDelayMs,
		StreamSyncStartMs: u.StreamSyncStartMs,
	}
	if v.ModList == nil {
		v.ModList = []string{}
	}
	if u.Team != nil {
		v.Team = &Team{ID: u.Team.ID, Name: u.Team.Name}
	}
	return v
}
