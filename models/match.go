package models

import (
	"slices"
	"time"
)

// Side is one half of a match.
type Side string

const (
	SideRed  Side = "red"
	SideBlue Side = "blue"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideRed {
		return SideBlue
	}
	return SideRed
}

// Valid reports whether s names a side.
func (s Side) Valid() bool { return s == SideRed || s == SideBlue }

// ParseSide accepts "red"/"blue" and the numeric forms 0/1.
func ParseSide(v string) (Side, error) {
	switch v {
	case "red", "0":
		return SideRed, nil
	case "blue", "1":
		return SideBlue, nil
	}
	return "", Reasonf(ErrValidation, "unknown side %q, expected red or blue", v)
}

// MatchState of a match in its lifecycle
type MatchState string

const (
	MatchActive    MatchState = "active"
	MatchResolved  MatchState = "resolved"
	MatchCancelled MatchState = "cancelled"
)

// RoomHandle is an opaque reference to a platform voice room.
type RoomHandle string

// Special move destinations understood by every adapter.
const (
	NoRoom      RoomHandle = ""
	WaitingRoom RoomHandle = "waiting-room"
)

// PredictedDelta is the rating change frozen for each outcome.
type PredictedDelta struct {
	OnWin  int `json:"onWin" dynamodbav:"onWin"`
	OnLoss int `json:"onLoss" dynamodbav:"onLoss"`
}

// For returns the delta for a win or a loss.
func (d PredictedDelta) For(won bool) int {
	if won {
		return d.OnWin
	}
	return d.OnLoss
}

// Prediction maps side -> participant -> frozen deltas.
type Prediction map[Side]map[string]PredictedDelta

// Lookup finds the delta of a participant on the given side.
func (p Prediction) Lookup(side Side, participant string) (PredictedDelta, bool) {
	d, ok := p[side][participant]
	return d, ok
}

// Match is a session between two equal-size teams.
type Match struct {
	ID         string     `json:"matchId"`
	Community  string     `json:"communityId"`
	State      MatchState `json:"state"`
	Size       int        `json:"size"`
	Host       string     `json:"host"`
	RedTeam    []string   `json:"redTeam"`
	BlueTeam   []string   `json:"blueTeam"`
	Prediction Prediction `json:"prediction"`
	Winner     Side       `json:"winner,omitempty"`
	RedRoom    RoomHandle `json:"redRoom,omitempty"`
	BlueRoom   RoomHandle `json:"blueRoom,omitempty"`
	Link       string     `json:"link"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt time.Time  `json:"resolvedAt,omitempty"`
}

// Team returns the roster of a side.
func (m *Match) Team(side Side) []string {
	if side == SideRed {
		return m.RedTeam
	}
	return m.BlueTeam
}

// Room returns the room handle of a side.
func (m *Match) Room(side Side) RoomHandle {
	if side == SideRed {
		return m.RedRoom
	}
	return m.BlueRoom
}

// SideOf reports which side the participant plays on.
func (m *Match) SideOf(participant string) (Side, bool) {
	if slices.Contains(m.RedTeam, participant) {
		return SideRed, true
	}
	if slices.Contains(m.BlueTeam, participant) {
		return SideBlue, true
	}
	return "", false
}

// Participants returns red then blue players.
func (m *Match) Participants() []string {
	out := make([]string, 0, len(m.RedTeam)+len(m.BlueTeam))
	out = append(out, m.RedTeam...)
	return append(out, m.BlueTeam...)
}

// Clone returns a deep copy safe to hand out of the registry.
func (m *Match) Clone() *Match {
	c := *m
	c.RedTeam = slices.Clone(m.RedTeam)
	c.BlueTeam = slices.Clone(m.BlueTeam)
	c.Prediction = make(Prediction, len(m.Prediction))
	for side, deltas := range m.Prediction {
		inner := make(map[string]PredictedDelta, len(deltas))
		for p, d := range deltas {
			inner[p] = d
		}
		c.Prediction[side] = inner
	}
	return &c
}

// RoomSpec describes a side room to open.
type RoomSpec struct {
	MatchID string
	Side    Side
	Allowed []string
}

// Notification is delivered to a participant through the platform.
type Notification struct {
	Kind    string `json:"kind"`
	MatchID string `json:"matchId,omitempty"`
	Side    Side   `json:"side,omitempty"`
	Link    string `json:"link,omitempty"`
	Message string `json:"message,omitempty"`
}

// Notification kinds
const (
	NotifyMatchStarted   = "match_started"
	NotifyMatchResolved  = "match_resolved"
	NotifyMatchCancelled = "match_cancelled"
	NotifyWinnerSwapped  = "winner_swapped"
	NotifyReplaced       = "replaced"
)
