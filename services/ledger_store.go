package services

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"openmm_server/models"
)

// LedgerStore persists a community's rating records as one keyed map.
type LedgerStore interface {
	LoadLedger(ctx context.Context, community string) (map[string]models.RatingRecord, error)
	SaveLedger(ctx context.Context, community string, records map[string]models.RatingRecord) error
}

// MemoryLedgerStore keeps ledgers in process memory.
type MemoryLedgerStore struct {
	mu      sync.Mutex
	ledgers map[string]map[string]models.RatingRecord
	saves   int
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{ledgers: make(map[string]map[string]models.RatingRecord)}
}

func (m *MemoryLedgerStore) LoadLedger(_ context.Context, community string) (map[string]models.RatingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecords(m.ledgers[community]), nil
}

func (m *MemoryLedgerStore) SaveLedger(_ context.Context, community string, records map[string]models.RatingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[community] = copyRecords(records)
	m.saves++
	return nil
}

// Saves counts SaveLedger calls.
func (m *MemoryLedgerStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FileLedgerStore writes <dir>/<community>/stats.json.
type FileLedgerStore struct {
	Dir string
}

func NewFileLedgerStore(dir string) *FileLedgerStore {
	return &FileLedgerStore{Dir: dir}
}

func (f *FileLedgerStore) path(community string) string {
	return filepath.Join(f.Dir, community, "stats.json")
}

func (f *FileLedgerStore) LoadLedger(_ context.Context, community string) (map[string]models.RatingRecord, error) {
	raw, err := os.ReadFile(f.path(community))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]models.RatingRecord{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read ledger of community %s", community)
	}
	records := map[string]models.RatingRecord{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, eris.Wrapf(err, "failed to decode ledger of community %s", community)
	}
	return records, nil
}

func (f *FileLedgerStore) SaveLedger(_ context.Context, community string, records map[string]models.RatingRecord) error {
	path := f.path(community)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create ledger directory for community %s", community)
	}
	raw, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return eris.Wrap(err, "failed to encode ledger")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return eris.Wrapf(err, "failed to write ledger of community %s", community)
	}
	return eris.Wrap(os.Rename(tmp, path), "failed to replace ledger file")
}

func copyRecords(in map[string]models.RatingRecord) map[string]models.RatingRecord {
	out := make(map[string]models.RatingRecord, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
