package services

import (
	"sync"
	"time"

	"openmm_server/models"
	"openmm_server/utils"
)

// matchEntry guards one match. Lifecycle operations hold mu for the whole
// transition; removed is set when the match leaves the registry.
type matchEntry struct {
	mu      sync.Mutex
	match   *models.Match
	removed bool
}

// MatchRegistry holds live matches by id. Its own lock only covers the map.
type MatchRegistry struct {
	ids *utils.ShortIDGenerator

	mu      sync.Mutex
	entries map[string]*matchEntry
}

func NewMatchRegistry(ids *utils.ShortIDGenerator) *MatchRegistry {
	return &MatchRegistry{ids: ids, entries: make(map[string]*matchEntry)}
}

// insert assigns a free id to m, stores it, and returns its entry locked.
func (r *MatchRegistry) insert(m *models.Match) (*matchEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.ids.Next(func(id string) bool {
		_, taken := r.entries[id]
		return taken
	})
	if err != nil {
		return nil, err
	}
	m.ID = id
	e := &matchEntry{match: m}
	e.mu.Lock()
	r.entries[id] = e
	return e, nil
}

// acquire returns the community's entry for id with its lock held. Matches of
// other communities are reported as missing.
func (r *MatchRegistry) acquire(community, id string) (*matchEntry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, models.Reasonf(models.ErrNotFound, "match %s does not exist or was cancelled", id)
	}
	e.mu.Lock()
	if e.removed || e.match.Community != community {
		e.mu.Unlock()
		return nil, models.Reasonf(models.ErrNotFound, "match %s does not exist or was cancelled", id)
	}
	return e, nil
}

// remove frees the id. The caller holds e.mu.
func (r *MatchRegistry) remove(e *matchEntry) {
	r.mu.Lock()
	if r.entries[e.match.ID] == e {
		delete(r.entries, e.match.ID)
	}
	r.mu.Unlock()
	e.removed = true
}

func (r *MatchRegistry) snapshot() []*matchEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*matchEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Len is the number of resident matches.
func (r *MatchRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// pruneResolved evicts resolved matches that resolved before cutoff.
func (r *MatchRegistry) pruneResolved(cutoff time.Time) int {
	removed := 0
	for _, e := range r.snapshot() {
		e.mu.Lock()
		m := e.match
		if !e.removed && m.State == models.MatchResolved && m.ResolvedAt.Before(cutoff) {
			r.remove(e)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}
