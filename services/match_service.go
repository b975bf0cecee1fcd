package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"openmm_server/models"
	"openmm_server/utils"
)

// MatchService runs the match lifecycle: create, resolve, cancel, swap
// winner and replace player.
type MatchService struct {
	registry  *MatchRegistry
	ledger    *LedgerService
	presence  *PresenceService
	penalties *PenaltyService
	platform  Platform
	selection *utils.KeyedMutex
	log       zerolog.Logger
	clock     func() time.Time
	k         float64
	retention time.Duration
}

type MatchOption func(*MatchService)

func WithMatchClock(clock func() time.Time) MatchOption {
	return func(s *MatchService) { s.clock = clock }
}

// WithKFactor sets the K used by the predictor.
func WithKFactor(k float64) MatchOption {
	return func(s *MatchService) { s.k = k }
}

// WithResolvedRetention sets how long resolved matches stay correctable.
func WithResolvedRetention(d time.Duration) MatchOption {
	return func(s *MatchService) { s.retention = d }
}

func NewMatchService(
	registry *MatchRegistry,
	ledger *LedgerService,
	presence *PresenceService,
	penalties *PenaltyService,
	platform Platform,
	log zerolog.Logger,
	opts ...MatchOption,
) *MatchService {
	s := &MatchService{
		registry:  registry,
		ledger:    ledger,
		presence:  presence,
		penalties: penalties,
		platform:  platform,
		selection: utils.NewKeyedMutex(),
		log:       log,
		clock:     time.Now,
		k:         models.DefaultK,
		retention: models.DefaultResolvedMatchRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateMatchRequest asks for a new match hosted by Host.
type CreateMatchRequest struct {
	Community string `json:"communityId"`
	Host      string `json:"host"`
	Size      int    `json:"size"`
	Link      string `json:"link"`
}

// MatchOutcome is the result of a lifecycle operation. Advisories list the
// platform calls that failed after the state change was committed.
type MatchOutcome struct {
	Match      *models.Match     `json:"match"`
	Deltas     map[string]int    `json:"deltas,omitempty"`
	Advisories models.Advisories `json:"-"`
}

// CreateMatch selects the host plus the longest-waiting eligible
// participants, balances them into two sides and freezes their deltas.
func (s *MatchService) CreateMatch(ctx context.Context, req CreateMatchRequest) (*MatchOutcome, error) {
	var reasons []string
	if req.Size < models.MinTeamSize || req.Size > models.MaxTeamSize {
		reasons = append(reasons, fmt.Sprintf("team size must be between %d and %d, got %d",
			models.MinTeamSize, models.MaxTeamSize, req.Size))
	}
	if strings.TrimSpace(req.Link) == "" {
		reasons = append(reasons, "a session link is required")
	}
	if req.Host == "" {
		reasons = append(reasons, "a host is required")
	}
	if len(reasons) > 0 {
		return nil, models.Reasons(models.ErrValidation, reasons...)
	}
	if !s.platform.HasHostingCapability(ctx, req.Community, req.Host) {
		return nil, models.Reasonf(models.ErrValidation, "%s needs the hosting capability to start a match", req.Host)
	}

	unlock := s.selection.Lock(req.Community)
	now := s.clock()
	eligible := s.presence.Eligible(req.Community, now)
	need := req.Size * 2
	if !slices.Contains(eligible, req.Host) {
		unlock()
		return nil, models.Reasonf(models.ErrValidation, "the host must be waiting in the queue to start a match")
	}
	if len(eligible) < need {
		unlock()
		return nil, models.Reasonf(models.ErrValidation,
			"there are %d eligible participants in the queue; a %dv%d match requires at least %d",
			len(eligible), req.Size, req.Size, need)
	}
	others := slices.DeleteFunc(slices.Clone(eligible), func(p string) bool { return p == req.Host })
	selected := append([]string{req.Host}, s.presence.WaitOrder(req.Community, others)[:need-1]...)

	rated, err := s.ledger.Ratings(ctx, req.Community, selected)
	if err != nil {
		unlock()
		return nil, err
	}
	partition, err := Balance(rated)
	if err != nil {
		unlock()
		return nil, err
	}
	prediction, err := Predict(partition.SideA, partition.SideB, s.k)
	if err != nil {
		unlock()
		return nil, err
	}
	m := &models.Match{
		Community:  req.Community,
		State:      models.MatchActive,
		Size:       req.Size,
		Host:       req.Host,
		RedTeam:    IDs(partition.SideA),
		BlueTeam:   IDs(partition.SideB),
		Prediction: prediction,
		Link:       req.Link,
		CreatedAt:  now,
	}
	entry, err := s.registry.insert(m)
	if err != nil {
		unlock()
		return nil, err
	}
	for _, p := range selected {
		s.presence.MarkLeft(req.Community, p)
	}
	unlock()
	defer entry.mu.Unlock()

	out := &MatchOutcome{}
	if _, err := s.ledger.Apply(ctx, req.Community, req.Host, models.StatDelta{models.StatHosted: 1}, models.ApplyAdd); err != nil {
		out.Advisories.Add("count-hosted", req.Host, err)
	}
	out.Advisories.Add("save-ledger", "", s.ledger.Save(ctx, req.Community))

	for _, side := range []models.Side{models.SideRed, models.SideBlue} {
		room, err := s.platform.OpenSideRoom(ctx, req.Community, models.RoomSpec{
			MatchID: m.ID,
			Side:    side,
			Allowed: m.Team(side),
		})
		if err != nil {
			out.Advisories.Add("open-room", string(side), err)
			continue
		}
		if side == models.SideRed {
			m.RedRoom = room
		} else {
			m.BlueRoom = room
		}
	}
	for _, side := range []models.Side{models.SideRed, models.SideBlue} {
		for _, p := range m.Team(side) {
			out.Advisories.Add("notify", p, s.platform.NotifyParticipant(ctx, req.Community, p, models.Notification{
				Kind:    models.NotifyMatchStarted,
				MatchID: m.ID,
				Side:    side,
				Link:    m.Link,
				Message: fmt.Sprintf("Match started! You are on the %s team.", side),
			}))
			if room := m.Room(side); room != models.NoRoom {
				out.Advisories.Add("move", p, s.platform.MoveParticipant(ctx, req.Community, p, room))
			}
		}
	}

	s.log.Info().Str("community", req.Community).Str("match", m.ID).Str("host", req.Host).
		Strs("red", m.RedTeam).Strs("blue", m.BlueTeam).Int("difference", partition.Difference).
		Int("advisories", len(out.Advisories)).Msg("match created")
	out.Match = m.Clone()
	return out, nil
}

// ResolveMatch applies the frozen deltas for the given winner.
func (s *MatchService) ResolveMatch(ctx context.Context, actor, community, id string, winner models.Side) (*MatchOutcome, error) {
	if !winner.Valid() {
		return nil, models.Reasonf(models.ErrValidation, "unknown winning side %q", winner)
	}
	entry, err := s.registry.acquire(community, id)
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()
	m := entry.match
	if err := s.authorize(ctx, actor, m); err != nil {
		return nil, err
	}
	if m.State != models.MatchActive {
		return nil, models.Reasonf(models.ErrStateConflict, "match %s is already %s", id, m.State)
	}

	deltas := make(map[string]models.StatDelta, m.Size*2)
	applied := make(map[string]int, m.Size*2)
	for _, side := range []models.Side{models.SideRed, models.SideBlue} {
		won := side == winner
		for _, p := range m.Team(side) {
			d, _ := m.Prediction.Lookup(side, p)
			change := d.For(won)
			delta := models.StatDelta{models.StatRating: change, models.StatPlayed: 1}
			if won {
				delta[models.StatWins] = 1
			}
			deltas[p] = delta
			applied[p] = change
		}
	}
	if _, err := s.ledger.ApplyAll(ctx, m.Community, deltas, models.ApplyAdd); err != nil {
		return nil, err
	}
	m.State = models.MatchResolved
	m.Winner = winner
	m.ResolvedAt = s.clock()

	out := &MatchOutcome{Deltas: applied}
	out.Advisories.Add("save-ledger", "", s.ledger.Save(ctx, m.Community))
	s.closeRooms(ctx, m, &out.Advisories)
	s.notifyAll(ctx, m, models.NotifyMatchResolved, fmt.Sprintf("Match ended. Winning team: %s.", winner), &out.Advisories)

	s.log.Info().Str("community", m.Community).Str("match", id).Str("actor", actor).
		Str("winner", string(winner)).Int("advisories", len(out.Advisories)).Msg("match resolved")
	out.Match = m.Clone()
	return out, nil
}

// CancelMatch ends an active match without rating changes and frees its id.
func (s *MatchService) CancelMatch(ctx context.Context, actor, community, id, reason string) (*MatchOutcome, error) {
	entry, err := s.registry.acquire(community, id)
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()
	m := entry.match
	if err := s.authorize(ctx, actor, m); err != nil {
		return nil, err
	}
	if m.State != models.MatchActive {
		return nil, models.Reasonf(models.ErrStateConflict, "match %s is already %s", id, m.State)
	}
	m.State = models.MatchCancelled
	s.registry.remove(entry)

	out := &MatchOutcome{}
	s.closeRooms(ctx, m, &out.Advisories)
	s.notifyAll(ctx, m, models.NotifyMatchCancelled, fmt.Sprintf("Match cancelled. Reason: %s", reason), &out.Advisories)

	s.log.Info().Str("community", m.Community).Str("match", id).Str("actor", actor).
		Str("reason", reason).Msg("match cancelled")
	out.Match = m.Clone()
	return out, nil
}

// SwapWinner flips the winner of a resolved match. Each participant gets
// twice the delta of the new outcome, which undoes the first application
// only when OnWin == -OnLoss.
func (s *MatchService) SwapWinner(ctx context.Context, actor, community, id string) (*MatchOutcome, error) {
	entry, err := s.registry.acquire(community, id)
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()
	m := entry.match
	if err := s.authorize(ctx, actor, m); err != nil {
		return nil, err
	}
	if m.State != models.MatchResolved {
		return nil, models.Reasonf(models.ErrStateConflict, "match %s has not been resolved yet", id)
	}

	winner := m.Winner.Opposite()
	deltas := make(map[string]models.StatDelta, m.Size*2)
	applied := make(map[string]int, m.Size*2)
	for _, side := range []models.Side{models.SideRed, models.SideBlue} {
		won := side == winner
		wins := -1
		if won {
			wins = 1
		}
		for _, p := range m.Team(side) {
			d, _ := m.Prediction.Lookup(side, p)
			change := d.For(won) * 2
			deltas[p] = models.StatDelta{models.StatRating: change, models.StatWins: wins}
			applied[p] = change
		}
	}
	if _, err := s.ledger.ApplyAll(ctx, m.Community, deltas, models.ApplyAdd); err != nil {
		return nil, err
	}
	m.Winner = winner

	out := &MatchOutcome{Deltas: applied}
	out.Advisories.Add("save-ledger", "", s.ledger.Save(ctx, m.Community))
	s.notifyAll(ctx, m, models.NotifyWinnerSwapped, fmt.Sprintf("Winners swapped. New winning team: %s.", winner), &out.Advisories)

	s.log.Info().Str("community", m.Community).Str("match", id).Str("actor", actor).
		Str("winner", string(winner)).Msg("match winner swapped")
	out.Match = m.Clone()
	return out, nil
}

// ReplacePlayer swaps outgoing for a queued participant on the same side and
// re-predicts the whole roster from current ratings.
func (s *MatchService) ReplacePlayer(ctx context.Context, actor, community, id, outgoing, incoming string) (*MatchOutcome, error) {
	entry, err := s.registry.acquire(community, id)
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()
	m := entry.match
	if err := s.authorize(ctx, actor, m); err != nil {
		return nil, err
	}
	if m.State != models.MatchActive {
		return nil, models.Reasonf(models.ErrStateConflict, "match %s is already %s", id, m.State)
	}
	side, ok := m.SideOf(outgoing)
	if !ok {
		return nil, models.Reasonf(models.ErrValidation, "%s is not on the roster of match %s", outgoing, id)
	}
	if _, on := m.SideOf(incoming); on {
		return nil, models.Reasonf(models.ErrValidation, "%s is already on the roster of match %s", incoming, id)
	}

	unlock := s.selection.Lock(m.Community)
	now := s.clock()
	var reasons []string
	if !s.presence.Contains(m.Community, incoming) {
		reasons = append(reasons, fmt.Sprintf("%s is not waiting in the queue", incoming))
	}
	if s.penalties.IsSuspended(m.Community, incoming, now) {
		reasons = append(reasons, fmt.Sprintf("%s is suspended", incoming))
	}
	if len(reasons) > 0 {
		unlock()
		return nil, models.Reasons(models.ErrValidation, reasons...)
	}

	red := slices.Clone(m.RedTeam)
	blue := slices.Clone(m.BlueTeam)
	if side == models.SideRed {
		red = append(slices.DeleteFunc(red, func(p string) bool { return p == outgoing }), incoming)
	} else {
		blue = append(slices.DeleteFunc(blue, func(p string) bool { return p == outgoing }), incoming)
	}
	redRated, err := s.ledger.Ratings(ctx, m.Community, red)
	if err != nil {
		unlock()
		return nil, err
	}
	blueRated, err := s.ledger.Ratings(ctx, m.Community, blue)
	if err != nil {
		unlock()
		return nil, err
	}
	prediction, err := Predict(redRated, blueRated, s.k)
	if err != nil {
		unlock()
		return nil, err
	}
	m.RedTeam, m.BlueTeam, m.Prediction = red, blue, prediction
	s.presence.MarkLeft(m.Community, incoming)
	unlock()

	out := &MatchOutcome{}
	if room := m.Room(side); room != models.NoRoom {
		out.Advisories.Add("revoke-access", outgoing, s.platform.SetRoomAccess(ctx, m.Community, room, outgoing, false))
		out.Advisories.Add("grant-access", incoming, s.platform.SetRoomAccess(ctx, m.Community, room, incoming, true))
		out.Advisories.Add("move", incoming, s.platform.MoveParticipant(ctx, m.Community, incoming, room))
	}
	out.Advisories.Add("move", outgoing, s.platform.MoveParticipant(ctx, m.Community, outgoing, models.WaitingRoom))
	out.Advisories.Add("notify", incoming, s.platform.NotifyParticipant(ctx, m.Community, incoming, models.Notification{
		Kind:    models.NotifyMatchStarted,
		MatchID: m.ID,
		Side:    side,
		Link:    m.Link,
		Message: fmt.Sprintf("You replaced %s. You are on the %s team.", outgoing, side),
	}))
	out.Advisories.Add("notify", outgoing, s.platform.NotifyParticipant(ctx, m.Community, outgoing, models.Notification{
		Kind:    models.NotifyReplaced,
		MatchID: m.ID,
		Message: fmt.Sprintf("You were replaced by %s.", incoming),
	}))

	s.log.Info().Str("community", m.Community).Str("match", id).Str("actor", actor).
		Str("outgoing", outgoing).Str("incoming", incoming).Msg("player replaced")
	out.Match = m.Clone()
	return out, nil
}

// Get returns a copy of a resident match of the community.
func (s *MatchService) Get(community, id string) (*models.Match, error) {
	entry, err := s.registry.acquire(community, id)
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()
	return entry.match.Clone(), nil
}

// List returns copies of the community's resident matches, newest first.
func (s *MatchService) List(community string) []*models.Match {
	var out []*models.Match
	for _, e := range s.registry.snapshot() {
		e.mu.Lock()
		if !e.removed && e.match.Community == community {
			out = append(out, e.match.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// PruneResolved evicts resolved matches older than the retention window.
// Evicted matches can no longer have their winner swapped.
func (s *MatchService) PruneResolved(now time.Time) int {
	n := s.registry.pruneResolved(now.Add(-s.retention))
	if n > 0 {
		s.log.Info().Int("matches", n).Msg("pruned resolved matches")
	}
	return n
}

func (s *MatchService) authorize(ctx context.Context, actor string, m *models.Match) error {
	if actor != "" && actor == m.Host {
		return nil
	}
	if s.platform.HasModerationCapability(ctx, m.Community, actor) {
		return nil
	}
	return models.Reasonf(models.ErrValidation,
		"%s must be the host of match %s or hold the moderation capability", actor, m.ID)
}

func (s *MatchService) closeRooms(ctx context.Context, m *models.Match, adv *models.Advisories) {
	for _, room := range []models.RoomHandle{m.RedRoom, m.BlueRoom} {
		if room != models.NoRoom {
			adv.Add("close-room", string(room), s.platform.CloseRoom(ctx, m.Community, room))
		}
	}
}

func (s *MatchService) notifyAll(ctx context.Context, m *models.Match, kind, msg string, adv *models.Advisories) {
	for _, side := range []models.Side{models.SideRed, models.SideBlue} {
		for _, p := range m.Team(side) {
			adv.Add("notify", p, s.platform.NotifyParticipant(ctx, m.Community, p, models.Notification{
				Kind:    kind,
				MatchID: m.ID,
				Side:    side,
				Message: msg,
			}))
		}
	}
}
