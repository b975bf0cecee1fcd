package services

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rotisserie/eris"

	"openmm_server/models"
	"openmm_server/utils"
)

var _ LedgerStore = &DynamoLedgerStore{}

// DynamoLedgerStore keeps one item per (communityId, participantId).
type DynamoLedgerStore struct {
	Dynamo *DynamoService
	Table  string
}

func NewDynamoLedgerStore(dynamo *DynamoService, table string) *DynamoLedgerStore {
	if table == "" {
		table = models.RatingLedgerTable
	}
	return &DynamoLedgerStore{Dynamo: dynamo, Table: table}
}

func (d *DynamoLedgerStore) LoadLedger(ctx context.Context, community string) (map[string]models.RatingRecord, error) {
	items, err := d.Dynamo.QueryAll(ctx, d.Table, "communityId = :c", map[string]types.AttributeValue{
		":c": utils.StringAttr(community),
	})
	if err != nil {
		return nil, err
	}
	records := make(map[string]models.RatingRecord, len(items))
	for _, raw := range items {
		participant := utils.ExtractString(raw, "participantId")
		if participant == "" {
			continue
		}
		var item models.LedgerItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, eris.Wrapf(err, "bad ledger item for %s", participant)
		}
		// items written before a participant was rated carry no elo
		item.Rating = utils.ExtractInt(raw, "elo", models.DefaultRating)
		records[participant] = item.RatingRecord
	}
	return records, nil
}

// SaveLedger upserts every record; records are never deleted.
func (d *DynamoLedgerStore) SaveLedger(ctx context.Context, community string, records map[string]models.RatingRecord) error {
	for participant, rec := range records {
		item := models.LedgerItem{CommunityID: community, ParticipantID: participant, RatingRecord: rec}
		if err := d.Dynamo.PutItem(ctx, d.Table, item); err != nil {
			return err
		}
	}
	return nil
}
