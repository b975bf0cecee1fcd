package models

import "time"

// VoiceTransition is a participant moving between voice rooms.
type VoiceTransition struct {
	Community    string    `json:"communityId"`
	Participant  string    `json:"participant"`
	PreviousRoom string    `json:"previousRoom"`
	NewRoom      string    `json:"newRoom"`
	Bot          bool      `json:"bot"`
	At           time.Time `json:"at"`
}

// QueueEntry is one waiting participant.
type QueueEntry struct {
	Participant string    `json:"participant"`
	JoinedAt    time.Time `json:"joinedAt"`
}
