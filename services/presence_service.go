package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"openmm_server/models"
	"openmm_server/utils"
)

// QueueRoomLookup returns the id of a community's waiting room.
type QueueRoomLookup func(community string) (string, bool)

// PresenceService tracks who waits in each community's queue room and since when.
type PresenceService struct {
	penalties *PenaltyService
	rooms     Rooms
	queueRoom QueueRoomLookup
	keys      *utils.KeyedMutex
	log       zerolog.Logger
	clock     func() time.Time

	mu      sync.Mutex
	entries map[string]map[string]time.Time
}

func NewPresenceService(penalties *PenaltyService, rooms Rooms, queueRoom QueueRoomLookup, keys *utils.KeyedMutex, log zerolog.Logger) *PresenceService {
	return &PresenceService{
		penalties: penalties,
		rooms:     rooms,
		queueRoom: queueRoom,
		keys:      keys,
		log:       log,
		clock:     time.Now,
		entries:   make(map[string]map[string]time.Time),
	}
}

// SetClock replaces the time source.
func (s *PresenceService) SetClock(clock func() time.Time) { s.clock = clock }

// MarkEntered records that participant joined the queue at t.
func (s *PresenceService) MarkEntered(community, participant string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[community]
	if !ok {
		m = make(map[string]time.Time)
		s.entries[community] = m
	}
	m[participant] = t
}

// MarkLeft forgets the participant's queue entry.
func (s *PresenceService) MarkLeft(community, participant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[community], participant)
}

// Contains reports whether the participant has a queue entry.
func (s *PresenceService) Contains(community, participant string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[community][participant]
	return ok
}

// WaitOrder sorts candidates by entry time, longest waiting first. Candidates
// without an entry go last; ties keep the input order.
func (s *PresenceService) WaitOrder(community string, candidates []string) []string {
	s.mu.Lock()
	joined := make(map[string]time.Time, len(candidates))
	for _, c := range candidates {
		if t, ok := s.entries[community][c]; ok {
			joined[c] = t
		}
	}
	s.mu.Unlock()

	out := append([]string(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, iok := joined[out[i]]
		tj, jok := joined[out[j]]
		if !iok || !jok {
			return iok && !jok
		}
		return ti.Before(tj)
	})
	return out
}

// Entries lists the community's queue in wait order.
func (s *PresenceService) Entries(community string) []models.QueueEntry {
	s.mu.Lock()
	out := make([]models.QueueEntry, 0, len(s.entries[community]))
	for p, t := range s.entries[community] {
		out = append(out, models.QueueEntry{Participant: p, JoinedAt: t})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Participant < out[j].Participant
	})
	return out
}

// Eligible lists queued participants without an active suspension, in wait order.
func (s *PresenceService) Eligible(community string, now time.Time) []string {
	var out []string
	for _, e := range s.Entries(community) {
		if !s.penalties.IsSuspended(community, e.Participant, now) {
			out = append(out, e.Participant)
		}
	}
	return out
}

// Transition actions
const (
	TransitionJoined  = "joined"
	TransitionLeft    = "left"
	TransitionEvicted = "evicted"
	TransitionIgnored = "ignored"
)

// TransitionOutcome tells what a voice transition did to the queue.
type TransitionOutcome struct {
	Action     string            `json:"action"`
	Advisories models.Advisories `json:"-"`
}

// HandleTransition applies a voice room change to the queue. Suspended
// participants entering the queue room are disconnected instead of queued.
func (s *PresenceService) HandleTransition(ctx context.Context, ev models.VoiceTransition) (*TransitionOutcome, error) {
	queue, ok := s.queueRoom(ev.Community)
	if !ok {
		return nil, models.Reasonf(models.ErrNotFound, "community %s has no queue room configured", ev.Community)
	}
	if ev.Participant == "" {
		return nil, models.Reasonf(models.ErrValidation, "participant is required")
	}
	out := &TransitionOutcome{Action: TransitionIgnored}
	if ev.Bot {
		return out, nil
	}
	at := ev.At
	if at.IsZero() {
		at = s.clock()
	}

	if err := s.penalties.Reconcile(ctx, ev.Community, ev.Participant); err != nil {
		var effect *models.EffectError
		if errors.As(err, &effect) {
			out.Advisories = append(out.Advisories, effect)
		}
	}

	entering := ev.NewRoom == queue && ev.PreviousRoom != queue
	leaving := ev.PreviousRoom == queue && ev.NewRoom != queue
	log := s.log.With().Str("community", ev.Community).Str("participant", ev.Participant).Logger()

	switch {
	case entering:
		unlock := s.keys.Lock(utils.ParticipantKey(ev.Community, ev.Participant))
		if s.penalties.IsSuspended(ev.Community, ev.Participant, s.clock()) {
			unlock()
			out.Action = TransitionEvicted
			out.Advisories.Add("evict", ev.Participant,
				s.rooms.MoveParticipant(ctx, ev.Community, ev.Participant, models.NoRoom))
			log.Info().Msg("suspended participant evicted from queue")
			return out, nil
		}
		s.MarkEntered(ev.Community, ev.Participant, at)
		unlock()
		out.Action = TransitionJoined
		log.Debug().Time("at", at).Msg("joined queue")
	case leaving:
		s.MarkLeft(ev.Community, ev.Participant)
		out.Action = TransitionLeft
		log.Debug().Msg("left queue")
	}
	return out, nil
}
