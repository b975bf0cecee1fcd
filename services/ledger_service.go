package services

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"openmm_server/models"
)

// LedgerService is the per-community rating ledger. Each community's records
// are loaded from the store on first use and written back by Save.
type LedgerService struct {
	store LedgerStore
	log   zerolog.Logger

	mu          sync.Mutex
	communities map[string]*communityLedger
}

type communityLedger struct {
	mu      sync.Mutex
	loaded  bool
	records map[string]*models.RatingRecord
}

func NewLedgerService(store LedgerStore, log zerolog.Logger) *LedgerService {
	return &LedgerService{
		store:       store,
		log:         log,
		communities: make(map[string]*communityLedger),
	}
}

// open returns the community ledger locked and loaded. The caller unlocks it.
func (l *LedgerService) open(ctx context.Context, community string) (*communityLedger, error) {
	l.mu.Lock()
	cl, ok := l.communities[community]
	if !ok {
		cl = &communityLedger{records: make(map[string]*models.RatingRecord)}
		l.communities[community] = cl
	}
	l.mu.Unlock()

	cl.mu.Lock()
	if cl.loaded {
		return cl, nil
	}
	stored, err := l.store.LoadLedger(ctx, community)
	if err != nil {
		cl.mu.Unlock()
		return nil, err
	}
	for participant, rec := range stored {
		rec := rec
		cl.records[participant] = &rec
	}
	cl.loaded = true
	l.log.Debug().Str("community", community).Int("records", len(stored)).Msg("ledger loaded")
	return cl, nil
}

func (cl *communityLedger) ensure(participant string) *models.RatingRecord {
	rec, ok := cl.records[participant]
	if !ok {
		r := models.NewRatingRecord()
		rec = &r
		cl.records[participant] = rec
	}
	return rec
}

// EnsureRecord creates the record with defaults if it does not exist yet.
func (l *LedgerService) EnsureRecord(ctx context.Context, community, participant string) (models.RatingRecord, error) {
	cl, err := l.open(ctx, community)
	if err != nil {
		return models.RatingRecord{}, err
	}
	defer cl.mu.Unlock()
	return *cl.ensure(participant), nil
}

// Read returns a copy of the participant's record.
func (l *LedgerService) Read(ctx context.Context, community, participant string) (models.RatingRecord, error) {
	return l.EnsureRecord(ctx, community, participant)
}

// Ratings snapshots the rating of each participant, in order.
func (l *LedgerService) Ratings(ctx context.Context, community string, participants []string) ([]RatedParticipant, error) {
	cl, err := l.open(ctx, community)
	if err != nil {
		return nil, err
	}
	defer cl.mu.Unlock()
	out := make([]RatedParticipant, len(participants))
	for i, p := range participants {
		out[i] = RatedParticipant{ID: p, Rating: cl.ensure(p).Rating}
	}
	return out, nil
}

// Apply updates one record. Ratings have no floor.
func (l *LedgerService) Apply(ctx context.Context, community, participant string, delta models.StatDelta, mode models.ApplyMode) (models.RatingRecord, error) {
	cl, err := l.open(ctx, community)
	if err != nil {
		return models.RatingRecord{}, err
	}
	defer cl.mu.Unlock()
	rec := cl.ensure(participant)
	rec.Apply(delta, mode)
	return *rec, nil
}

// ApplyAll updates several records of one community as a single step.
func (l *LedgerService) ApplyAll(ctx context.Context, community string, deltas map[string]models.StatDelta, mode models.ApplyMode) (map[string]models.RatingRecord, error) {
	cl, err := l.open(ctx, community)
	if err != nil {
		return nil, err
	}
	defer cl.mu.Unlock()
	out := make(map[string]models.RatingRecord, len(deltas))
	for participant, delta := range deltas {
		rec := cl.ensure(participant)
		rec.Apply(delta, mode)
		out[participant] = *rec
	}
	return out, nil
}

// Standings lists every record by rating, highest first.
func (l *LedgerService) Standings(ctx context.Context, community string) ([]models.Standing, error) {
	cl, err := l.open(ctx, community)
	if err != nil {
		return nil, err
	}
	defer cl.mu.Unlock()
	out := make([]models.Standing, 0, len(cl.records))
	for p, rec := range cl.records {
		out = append(out, models.Standing{Participant: p, RatingRecord: *rec})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Participant < out[j].Participant
	})
	return out, nil
}

// Save writes the community's records to the store. The ledger stays locked
// while writing so snapshots reach the store in order.
func (l *LedgerService) Save(ctx context.Context, community string) error {
	cl, err := l.open(ctx, community)
	if err != nil {
		return err
	}
	defer cl.mu.Unlock()
	snapshot := make(map[string]models.RatingRecord, len(cl.records))
	for p, rec := range cl.records {
		snapshot[p] = *rec
	}
	return l.store.SaveLedger(ctx, community, snapshot)
}
