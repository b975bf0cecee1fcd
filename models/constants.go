package models

import "time"

// Rating defaults
const (
	DefaultRating = 100
	DefaultK      = 30
)

// Team sizes accepted by CreateMatch (players per side)
const (
	MinTeamSize = 1
	MaxTeamSize = 5
)

// MaxBalanceParticipants caps the exhaustive team search.
const MaxBalanceParticipants = MaxTeamSize * 2

// MatchIDLength is the length of generated match ids.
const MatchIDLength = 6

// Retention defaults
const (
	DefaultResolvedMatchRetention = 24 * time.Hour
	DefaultSuspensionRetention    = 30 * 24 * time.Hour
)

// RatingLedgerTable is the DynamoDB table name for rating records
const RatingLedgerTable = "RatingLedger"
