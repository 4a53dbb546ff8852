package repository

import (
	"slices"

	"github.com/okian/tarelay/internal/domain/model"
)

// State is the relay's mirror of the origin server. Users are partitioned by
// client type; a guid appears in at most one collection.
type State struct {
	ServerConnections []model.User
	Coordinators      []model.User
	Players           []model.User
	Matches           []model.Match
	KnownHosts        []model.CoreServer
	Scores            map[string]model.RealtimeScore
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Scores: make(map[string]model.RealtimeScore)}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		ServerConnections: cloneUsers(s.ServerConnections),
		Coordinators:      cloneUsers(s.Coordinators),
		Players:           cloneUsers(s.Players),
		Matches:           make([]model.Match, 0, len(s.Matches)),
		KnownHosts:        slices.Clone(s.KnownHosts),
		Scores:            make(map[string]model.RealtimeScore, len(s.Scores)),
	}
	for _, m := range s.Matches {
		c.Matches = append(c.Matches, m.Clone())
	}
	for k, v := range s.Scores {
		c.Scores[k] = v.Clone()
	}
	return c
}

func cloneUsers(in []model.User) []model.User {
	out := make([]model.User, 0, len(in))
	for _, u := range in {
		out = append(out, u.Clone())
	}
	return out
}

// collection returns the slice that holds users of type t, or nil for
// unrecognized types.
func (s *State) collection(t model.ClientType) *[]model.User {
	switch t.Classify() {
	case model.ClientTypePlayer:
		return &s.Players
	case model.ClientTypeCoordinator:
		return &s.Coordinators
	case model.ClientTypeWebsocketConnection:
		return &s.ServerConnections
	default:
		return nil
	}
}

func (s *State) all() []*[]model.User {
	return []*[]model.User{&s.ServerConnections, &s.Coordinators, &s.Players}
}

// AddUser stores u in the collection for its client type, evicting any user
// with the same guid first. It reports false for unrecognized client types.
func (s *State) AddUser(u model.User) bool {
	dst := s.collection(u.ClientType)
	if dst == nil {
		return false
	}
	for _, col := range s.all() {
		*col = slices.DeleteFunc(*col, func(x model.User) bool { return x.GUID == u.GUID })
	}
	*dst = append(*dst, u.Clone())
	return true
}

// UpdateUser replaces the user with u's guid in u's collection. It reports
// false when no such user exists there.
func (s *State) UpdateUser(u model.User) bool {
	col := s.collection(u.ClientType)
	if col == nil {
		return false
	}
	i := slices.IndexFunc(*col, func(x model.User) bool { return x.GUID == u.GUID })
	if i < 0 {
		return false
	}
	(*col)[i] = u.Clone()
	return true
}

// RemoveUser deletes the user with u's guid from u's collection.
func (s *State) RemoveUser(u model.User) bool {
	col := s.collection(u.ClientType)
	if col == nil {
		return false
	}
	n := len(*col)
	*col = slices.DeleteFunc(*col, func(x model.User) bool { return x.GUID == u.GUID })
	return len(*col) != n
}

// FindUser looks a user up by guid across all collections.
func (s *State) FindUser(guid string) (model.User, bool) {
	for _, col := range s.all() {
		if i := slices.IndexFunc(*col, func(x model.User) bool { return x.GUID == guid }); i >= 0 {
			return (*col)[i], true
		}
	}
	return model.User{}, false
}

// FindPlayer looks a player up by guid.
func (s *State) FindPlayer(guid string) (model.User, bool) {
	i := slices.IndexFunc(s.Players, func(x model.User) bool { return x.GUID == guid })
	if i < 0 {
		return model.User{}, false
	}
	return s.Players[i], true
}

// PutMatch stores m, replacing a match with the same guid.
func (s *State) PutMatch(m model.Match) {
	if s.UpdateMatch(m) {
		return
	}
	s.Matches = append(s.Matches, m.Clone())
}

// UpdateMatch replaces the match with m's guid. It reports false when absent.
func (s *State) UpdateMatch(m model.Match) bool {
	i := slices.IndexFunc(s.Matches, func(x model.Match) bool { return x.GUID == m.GUID })
	if i < 0 {
		return false
	}
	s.Matches[i] = m.Clone()
	return true
}

// RemoveMatch deletes the match with the given guid.
func (s *State) RemoveMatch(guid string) bool {
	n := len(s.Matches)
	s.Matches = slices.DeleteFunc(s.Matches, func(x model.Match) bool { return x.GUID == guid })
	return len(s.Matches) != n
}

// FindMatch looks a match up by guid.
func (s *State) FindMatch(guid string) (model.Match, bool) {
	i := slices.IndexFunc(s.Matches, func(x model.Match) bool { return x.GUID == guid })
	if i < 0 {
		return model.Match{}, false
	}
	return s.Matches[i], true
}

// AddHost appends h. Hosts are not de-duplicated.
func (s *State) AddHost(h model.CoreServer) {
	s.KnownHosts = append(s.KnownHosts, h)
}

// RemoveHostsNamed deletes every host called name and returns how many went.
func (s *State) RemoveHostsNamed(name string) int {
	n := len(s.KnownHosts)
	s.KnownHosts = slices.DeleteFunc(s.KnownHosts, func(h model.CoreServer) bool { return h.Name == name })
	return n - len(s.KnownHosts)
}

// PutScore stores sc under its player guid, replacing any previous score.
func (s *State) PutScore(sc model.RealtimeScore) {
	if s.Scores == nil {
		s.Scores = make(map[string]model.RealtimeScore)
	}
	s.Scores[sc.UserGUID] = sc.Clone()
}

// Score returns the latest score for a player.
func (s *State) Score(guid string) (model.RealtimeScore, bool) {
	sc, ok := s.Scores[guid]
	return sc, ok
}

// Replace rebuilds users, matches and hosts from a full server state.
// Scores are kept.
func (s *State) Replace(st *model.ServerState) {
	s.ServerConnections = nil
	s.Coordinators = nil
	s.Players = nil
	s.Matches = nil
	s.KnownHosts = nil
	for _, u := range st.Users {
		s.AddUser(u)
	}
	for _, m := range st.Matches {
		s.PutMatch(m)
	}
	s.KnownHosts = slices.Clone(st.KnownHosts)
}

// Counts summarizes collection sizes.
type Counts struct {
	ServerConnections int `json:"server_connections"`
	Coordinators      int `json:"coordinators"`
	Players           int `json:"players"`
	Matches           int `json:"matches"`
	KnownHosts        int `json:"known_hosts"`
	Scores            int `json:"scores"`
}

// Counts returns the current collection sizes.
func (s *State) Counts() Counts {
	return Counts{
		ServerConnections: len(s.ServerConnections),
		Coordinators:      len(s.Coordinators),
		Players:           len(s.Players),
		Matches:           len(s.Matches),
		KnownHosts:        len(s.KnownHosts),
		Scores:            len(s.Scores),
	}
}
