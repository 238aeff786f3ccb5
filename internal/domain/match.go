package domain

import (
	"encoding/json"
)

// Settings bounds for the durable record. The live match instance applies its
// own, stricter capacity bounds (see MinLiveCapacity/MaxLiveCapacity); the two
// are independent limits and must not be unified.
const (
	MinSetting = 1
	MaxSetting = 100

	MinLiveCapacity = 2
	MaxLiveCapacity = 8
)

// MatchRecord is the durable row describing one match's membership and
// configuration. Turn sequencing relies on CurrentTurn increasing by exactly
// one per accepted submission.
type MatchRecord struct {
	MatchID     string   `json:"match_id"`
	Players     []string `json:"players"`
	Size        int      `json:"size"`
	Cols        int      `json:"cols,omitempty"`
	Rows        int      `json:"rows,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	CurrentTurn int64    `json:"current_turn"`
	Creator     string   `json:"creator,omitempty"`
}

// HasPlayer reports whether userID is currently counted as a member.
func (m *MatchRecord) HasPlayer(userID string) bool {
	for _, p := range m.Players {
		if p == userID {
			return true
		}
	}
	return false
}

// AddPlayer appends userID to the membership if not already present.
func (m *MatchRecord) AddPlayer(userID string) {
	if m.HasPlayer(userID) {
		return
	}
	m.Players = append(m.Players, userID)
}

// RemovePlayer drops userID from the membership. Returns false if userID was
// not a member.
func (m *MatchRecord) RemovePlayer(userID string) bool {
	for i, p := range m.Players {
		if p == userID {
			m.Players = append(m.Players[:i], m.Players[i+1:]...)
			return true
		}
	}
	return false
}

// TurnRecord is the durable, append-only row for one accepted move. Turn is
// 1-based and unique per match; Move is an opaque payload.
type TurnRecord struct {
	MatchID   string          `json:"match_id"`
	Turn      int64           `json:"turn"`
	Player    string          `json:"player"`
	Move      json.RawMessage `json:"move"`
	CreatedAt int64           `json:"created_at"`
}

// SettingsUpdate carries a sparse settings change; nil fields are left
// untouched on the target record.
type SettingsUpdate struct {
	Size *int `json:"size,omitempty"`
	Cols *int `json:"cols,omitempty"`
	Rows *int `json:"rows,omitempty"`
}

// ClampSetting bounds a durable settings value into [MinSetting, MaxSetting].
func ClampSetting(v int) int {
	if v < MinSetting {
		return MinSetting
	}
	if v > MaxSetting {
		return MaxSetting
	}
	return v
}

// ClampLiveCapacity bounds a live-play capacity into
// [MinLiveCapacity, MaxLiveCapacity].
func ClampLiveCapacity(v int) int {
	if v < MinLiveCapacity {
		return MinLiveCapacity
	}
	if v > MaxLiveCapacity {
		return MaxLiveCapacity
	}
	return v
}

// Apply clamps each present field and writes it onto the record.
func (u SettingsUpdate) Apply(m *MatchRecord) {
	if u.Size != nil {
		m.Size = ClampSetting(*u.Size)
	}
	if u.Cols != nil {
		m.Cols = ClampSetting(*u.Cols)
	}
	if u.Rows != nil {
		m.Rows = ClampSetting(*u.Rows)
	}
}
