package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"openmm_server/models"
	"openmm_server/utils"
)

// PenaltyPlatform is what the penalty service needs from the platform.
type PenaltyPlatform interface {
	Capabilities
	SuspensionEffects
}

// PenaltyService schedules timed suspensions. Records are history: they are
// appended, marked lifted, and pruned only after the retention window.
type PenaltyService struct {
	platform  PenaltyPlatform
	keys      *utils.KeyedMutex
	log       zerolog.Logger
	clock     func() time.Time
	afterFunc func(time.Duration, func())
	retention time.Duration

	mu      sync.Mutex
	records map[string][]models.Suspension
}

type PenaltyOption func(*PenaltyService)

func WithPenaltyClock(clock func() time.Time) PenaltyOption {
	return func(p *PenaltyService) { p.clock = clock }
}

// WithAfterFunc replaces time.AfterFunc for scheduling expiries.
func WithAfterFunc(f func(time.Duration, func())) PenaltyOption {
	return func(p *PenaltyService) { p.afterFunc = f }
}

func WithSuspensionRetention(d time.Duration) PenaltyOption {
	return func(p *PenaltyService) { p.retention = d }
}

func NewPenaltyService(platform PenaltyPlatform, keys *utils.KeyedMutex, log zerolog.Logger, opts ...PenaltyOption) *PenaltyService {
	p := &PenaltyService{
		platform:  platform,
		keys:      keys,
		log:       log,
		clock:     time.Now,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		retention: models.DefaultSuspensionRetention,
		records:   make(map[string][]models.Suspension),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SuspendOutcome is the result of a successful Suspend.
type SuspendOutcome struct {
	Suspension models.Suspension `json:"suspension"`
	EndsAt     time.Time         `json:"endsAt"`
	Advisories models.Advisories `json:"-"`
}

// Suspend records a suspension, applies the platform effect and schedules
// its expiry.
func (p *PenaltyService) Suspend(ctx context.Context, actor, community, participant string, duration time.Duration, reason string) (*SuspendOutcome, error) {
	if !p.platform.HasModerationCapability(ctx, community, actor) {
		return nil, models.Reasonf(models.ErrValidation, "%s needs the moderation capability to suspend participants", actor)
	}
	if duration <= 0 {
		return nil, models.Reasonf(models.ErrValidation, "invalid duration, provide one like 1d 2h 30m")
	}

	key := utils.ParticipantKey(community, participant)
	unlock := p.keys.Lock(key)
	now := p.clock()
	if p.IsSuspended(community, participant, now) {
		unlock()
		return nil, models.Reasonf(models.ErrAlreadySuspended, "%s is already under a suspension", participant)
	}
	s := models.Suspension{StartedAt: now, Duration: duration, Reason: reason, IssuedBy: actor}
	p.mu.Lock()
	p.records[key] = append(p.pruneLocked(p.records[key], now), s)
	p.mu.Unlock()
	unlock()

	out := &SuspendOutcome{Suspension: s, EndsAt: s.EndedAt()}
	out.Advisories.Add("apply-suspension", participant, p.platform.ApplySuspension(ctx, community, participant))
	p.afterFunc(duration, func() {
		if err := p.Reconcile(context.Background(), community, participant); err != nil {
			p.log.Warn().Err(err).Str("community", community).Str("participant", participant).
				Msg("failed to lift expired suspension")
		}
	})
	p.log.Info().Str("community", community).Str("participant", participant).Str("actor", actor).
		Dur("duration", duration).Str("reason", reason).Msg("participant suspended")
	return out, nil
}

// IsSuspended reports whether any record is in force at now.
func (p *PenaltyService) IsSuspended(community, participant string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.records[utils.ParticipantKey(community, participant)] {
		if s.Active(now) {
			return true
		}
	}
	return false
}

// Reconcile lifts the platform effect when no suspension is in force any
// more. It is the expiry action and safe to run any number of times.
func (p *PenaltyService) Reconcile(ctx context.Context, community, participant string) error {
	unlock := p.keys.Lock(utils.ParticipantKey(community, participant))
	defer unlock()
	if p.IsSuspended(community, participant, p.clock()) {
		return nil
	}
	has, err := p.platform.HasSuspension(ctx, community, participant)
	if err != nil {
		return &models.EffectError{Op: "check-suspension", Participant: participant, Err: err}
	}
	if !has {
		return nil
	}
	if err := p.platform.LiftSuspension(ctx, community, participant); err != nil {
		return &models.EffectError{Op: "lift-suspension", Participant: participant, Err: err}
	}
	p.log.Info().Str("community", community).Str("participant", participant).Msg("suspension expired")
	return nil
}

// LiftOutcome is the result of a manual lift.
type LiftOutcome struct {
	Lifted     int               `json:"lifted"`
	Advisories models.Advisories `json:"-"`
}

// LiftManually ends every active suspension of the participant now and
// removes the platform effect.
func (p *PenaltyService) LiftManually(ctx context.Context, actor, community, participant, reason string) (*LiftOutcome, error) {
	if !p.platform.HasModerationCapability(ctx, community, actor) {
		return nil, models.Reasonf(models.ErrValidation, "%s needs the moderation capability to lift suspensions", actor)
	}
	key := utils.ParticipantKey(community, participant)
	unlock := p.keys.Lock(key)
	now := p.clock()
	if !p.IsSuspended(community, participant, now) {
		has, err := p.platform.HasSuspension(ctx, community, participant)
		if err == nil && !has {
			unlock()
			return nil, models.Reasonf(models.ErrNotFound, "%s is not currently suspended", participant)
		}
	}
	lifted := 0
	p.mu.Lock()
	recs := p.records[key]
	for i := range recs {
		if recs[i].Active(now) {
			at := now
			recs[i].LiftedAt = &at
			lifted++
		}
	}
	p.mu.Unlock()
	unlock()

	out := &LiftOutcome{Lifted: lifted}
	out.Advisories.Add("lift-suspension", participant, p.platform.LiftSuspension(ctx, community, participant))
	p.log.Info().Str("community", community).Str("participant", participant).Str("actor", actor).
		Str("reason", reason).Int("lifted", lifted).Msg("suspension lifted manually")
	return out, nil
}

// History returns a copy of the participant's suspension records.
func (p *PenaltyService) History(community, participant string) []models.Suspension {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.records[utils.ParticipantKey(community, participant)])
}

// Prune drops records that ended before the retention window, for every
// participant. It returns the number of records removed.
func (p *PenaltyService) Prune(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for key, recs := range p.records {
		kept := p.pruneLocked(recs, now)
		removed += len(recs) - len(kept)
		if len(kept) == 0 {
			delete(p.records, key)
		} else {
			p.records[key] = kept
		}
	}
	return removed
}

func (p *PenaltyService) pruneLocked(recs []models.Suspension, now time.Time) []models.Suspension {
	cutoff := now.Add(-p.retention)
	return slices.DeleteFunc(recs, func(s models.Suspension) bool {
		return !s.Active(now) && s.EndedAt().Before(cutoff)
	})
}
