package models

import "sort"

// RatingRecord is the per-community skill record of one participant.
type RatingRecord struct {
	Rating int `json:"elo" dynamodbav:"elo"`
	Played int `json:"played" dynamodbav:"played"`
	Wins   int `json:"wins" dynamodbav:"wins"`
	Hosted int `json:"hosted" dynamodbav:"hosted"`
}

// NewRatingRecord returns a record with default values.
func NewRatingRecord() RatingRecord {
	return RatingRecord{Rating: DefaultRating}
}

// Losses is played minus wins.
func (r RatingRecord) Losses() int { return r.Played - r.Wins }

// Stat names a numeric field of a RatingRecord.
type Stat string

const (
	StatRating Stat = "elo"
	StatPlayed Stat = "played"
	StatWins   Stat = "wins"
	StatHosted Stat = "hosted"
)

// StatDelta lists the fields to update; fields not present are left untouched.
type StatDelta map[Stat]int

// Unknown returns the sorted keys of d that do not name a RatingRecord field.
func (d StatDelta) Unknown() []string {
	var out []string
	var rec RatingRecord
	for stat := range d {
		if rec.field(stat) == nil {
			out = append(out, string(stat))
		}
	}
	sort.Strings(out)
	return out
}

// ApplyMode selects between incrementing and overwriting fields.
type ApplyMode int

const (
	ApplyAdd ApplyMode = iota
	ApplySet
)

// Apply updates r in place according to mode.
func (r *RatingRecord) Apply(delta StatDelta, mode ApplyMode) {
	for stat, v := range delta {
		field := r.field(stat)
		if field == nil {
			continue
		}
		if mode == ApplyAdd {
			*field += v
		} else {
			*field = v
		}
	}
}

func (r *RatingRecord) field(stat Stat) *int {
	switch stat {
	case StatRating:
		return &r.Rating
	case StatPlayed:
		return &r.Played
	case StatWins:
		return &r.Wins
	case StatHosted:
		return &r.Hosted
	}
	return nil
}

// LedgerItem is the DynamoDB shape of a rating record.
type LedgerItem struct {
	CommunityID   string `dynamodbav:"communityId"`
	ParticipantID string `dynamodbav:"participantId"`
	RatingRecord
}

// Standing is one row of a community ranking.
type Standing struct {
	Participant string `json:"participant"`
	RatingRecord
}
