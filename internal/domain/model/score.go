package model

// ScoreTrackerHand holds per-hand note counters.
type ScoreTrackerHand struct {
	Hit    int32 `json:"hit"`
	Miss   int32 `json:"miss"`
	BadCut int32 `json:"bad_cut"`
}

// RealtimeScore is the latest live score reported for one player.
type RealtimeScore struct {
	UserGUID              string            `json:"user_guid"`
	Score                 int32             `json:"score"`
	ScoreWithModifiers    int32             `json:"score_with_modifiers"`
	MaxScore              int32             `json:"max_score"`
	MaxScoreWithModifiers int32             `json:"max_score_with_modifiers"`
	Combo                 int32             `json:"combo"`
	PlayerHealth          float32           `json:"player_health"`
	Accuracy              float32           `json:"accuracy"`
	SongPosition          float32           `json:"song_position"`
	NotesMissed           int32             `json:"notes_missed"`
	BadCuts               int32             `json:"bad_cuts"`
	BombHits              int32             `json:"bomb_hits"`
	WallHits              int32             `json:"wall_hits"`
	MaxCombo              int32             `json:"max_combo"`
	LeftHand              *ScoreTrackerHand `json:"left_hand,omitempty"`
	RightHand             *ScoreTrackerHand `json:"right_hand,omitempty"`
}

// Clone returns a deep copy of s.
func (s RealtimeScore) Clone() RealtimeScore {
	c := s
	if s.LeftHand != nil {
		h := *s.LeftHand
		c.LeftHand = &h
	}
	if s.RightHand != nil {
		h := *s.RightHand
		c.RightHand = &h
	}
	return c
}
