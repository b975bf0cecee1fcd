package models

import "time"

// Suspension is one timed restriction from joining the queue.
type Suspension struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Reason    string        `json:"reason,omitempty"`
	IssuedBy  string        `json:"issuedBy,omitempty"`
	LiftedAt  *time.Time    `json:"liftedAt,omitempty"`
}

// Active reports whether the suspension is in force at now.
func (s Suspension) Active(now time.Time) bool {
	return s.LiftedAt == nil && now.Sub(s.StartedAt) < s.Duration
}

// EndedAt is the lift time, or the natural expiry.
func (s Suspension) EndedAt() time.Time {
	if s.LiftedAt != nil {
		return *s.LiftedAt
	}
	return s.StartedAt.Add(s.Duration)
}
