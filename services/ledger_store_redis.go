package services

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"openmm_server/models"
)

var _ LedgerStore = &RedisLedgerStore{}

// RedisLedgerStore keeps one hash per community, one JSON field per participant.
type RedisLedgerStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLedgerStore(client redis.Cmdable, prefix string) *RedisLedgerStore {
	if prefix == "" {
		prefix = "openmm"
	}
	return &RedisLedgerStore{client: client, prefix: prefix}
}

func (r *RedisLedgerStore) key(community string) string {
	return r.prefix + ":ledger:" + community
}

func (r *RedisLedgerStore) LoadLedger(ctx context.Context, community string) (map[string]models.RatingRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.key(community)).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load ledger of community %s", community)
	}
	records := make(map[string]models.RatingRecord, len(fields))
	for participant, raw := range fields {
		var rec models.RatingRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, eris.Wrapf(err, "bad ledger record for %s", participant)
		}
		records[participant] = rec
	}
	return records, nil
}

func (r *RedisLedgerStore) SaveLedger(ctx context.Context, community string, records map[string]models.RatingRecord) error {
	values := make([]any, 0, len(records)*2)
	for participant, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrap(err, "failed to encode ledger record")
		}
		values = append(values, participant, string(raw))
	}
	key := r.key(community)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	return eris.Wrapf(err, "failed to save ledger of community %s", community)
}
