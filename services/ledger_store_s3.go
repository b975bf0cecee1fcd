package services

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"openmm_server/models"
)

var _ LedgerStore = &S3LedgerStore{}

// S3LedgerStore keeps each community ledger as one JSON object.
type S3LedgerStore struct {
	S3     *S3Service
	Prefix string
}

func NewS3LedgerStore(svc *S3Service, prefix string) *S3LedgerStore {
	if prefix == "" {
		prefix = "ledgers"
	}
	return &S3LedgerStore{S3: svc, Prefix: prefix}
}

func (s *S3LedgerStore) key(community string) string {
	return s.Prefix + "/" + community + "/stats.json"
}

func (s *S3LedgerStore) LoadLedger(ctx context.Context, community string) (map[string]models.RatingRecord, error) {
	body, err := s.S3.GetObject(ctx, s.key(community))
	if errors.Is(err, errObjectMissing) {
		return map[string]models.RatingRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	records := map[string]models.RatingRecord{}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, eris.Wrapf(err, "failed to decode ledger of community %s", community)
	}
	return records, nil
}

func (s *S3LedgerStore) SaveLedger(ctx context.Context, community string, records map[string]models.RatingRecord) error {
	body, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return eris.Wrap(err, "failed to encode ledger")
	}
	return s.S3.PutObject(ctx, s.key(community), "application/json", body)
}
