package model

import "slices"

// PreviewBeatmapLevel identifies the level selected for a match.
type PreviewBeatmapLevel struct {
	LevelID string
	Name    string
	Loaded  bool
	// Unknown holds encoded fields with no counterpart here. They are
	// written back unchanged.
	Unknown []byte
}

// Match groups users playing together. AssociatedUsers holds user guids only;
// they are resolved against the user collections when read.
type Match struct {
	GUID               string
	AssociatedUsers    []string
	Leader             string
	SelectedLevel      *PreviewBeatmapLevel
	SelectedDifficulty int32
	Unknown            []byte
}

// Clone returns a deep copy of m.
func (m Match) Clone() Match {
	c := m
	if m.AssociatedUsers != nil {
		c.AssociatedUsers = append([]string(nil), m.AssociatedUsers...)
	}
	if m.SelectedLevel != nil {
		l := *m.SelectedLevel
		l.Unknown = slices.Clone(l.Unknown)
		c.SelectedLevel = &l
	}
	c.Unknown = slices.Clone(m.Unknown)
	return c
}

// HasUser reports whether guid is associated with the match.
func (m Match) HasUser(guid string) bool {
	return slices.Contains(m.AssociatedUsers, guid)
}
