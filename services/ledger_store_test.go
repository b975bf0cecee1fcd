package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openmm_server/models"
	"openmm_server/utils"
)

var sampleLedger = map[string]models.RatingRecord{
	"alice": {Rating: 134, Played: 1, Wins: 1, Hosted: 1},
	"bob":   {Rating: -20, Played: 9, Wins: 2},
}

// exerciseStore runs the contract every LedgerStore must satisfy.
func exerciseStore(t *testing.T, store LedgerStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.LoadLedger(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.SaveLedger(ctx, "g", sampleLedger))
	got, err := store.LoadLedger(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, sampleLedger, got)

	other, err := store.LoadLedger(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryLedgerStore(t *testing.T) {
	store := NewMemoryLedgerStore()
	exerciseStore(t, store)
	assert.Equal(t, 1, store.Saves())
}

func TestFileLedgerStore(t *testing.T) {
	dir := t.TempDir()
	exerciseStore(t, NewFileLedgerStore(dir))

	raw, err := os.ReadFile(filepath.Join(dir, "g", "stats.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"elo": 134`)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "g", "stats.json"), []byte("{"), 0o644))
	_, err = NewFileLedgerStore(dir).LoadLedger(context.Background(), "g")
	require.Error(t, err)
}

func TestRedisLedgerStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisLedgerStore(client, "test")
	exerciseStore(t, store)
	assert.True(t, mr.Exists("test:ledger:g"))

	// saving replaces the whole hash
	ctx := context.Background()
	require.NoError(t, store.SaveLedger(ctx, "g", map[string]models.RatingRecord{"carol": {Rating: 100}}))
	got, err := store.LoadLedger(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, keys(got))

	mr.HSet("test:ledger:bad", "x", "not json")
	_, err = store.LoadLedger(ctx, "bad")
	require.Error(t, err)
}

func keys(m map[string]models.RatingRecord) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeDynamo serves Query one item per page to exercise pagination.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := utils.ExtractString(in.Item, "communityId") + "/" + utils.ExtractString(in.Item, "participantId")
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	community := utils.ExtractString(in.ExpressionAttributeValues, ":c")
	var matching []string
	for k, item := range f.items {
		if utils.ExtractString(item, "communityId") == community {
			matching = append(matching, k)
		}
	}
	sort.Strings(matching)
	start := 0
	if in.ExclusiveStartKey != nil {
		after := utils.ExtractString(in.ExclusiveStartKey, "key")
		for start < len(matching) && matching[start] <= after {
			start++
		}
	}
	out := &dynamodb.QueryOutput{}
	if start < len(matching) {
		out.Items = append(out.Items, f.items[matching[start]])
		if start+1 < len(matching) {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"key": utils.StringAttr(matching[start])}
		}
	}
	return out, nil
}

func TestDynamoLedgerStore(t *testing.T) {
	fake := &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
	store := NewDynamoLedgerStore(&DynamoService{Client: fake, Log: zerolog.Nop()}, "")
	assert.Equal(t, models.RatingLedgerTable, store.Table)
	exerciseStore(t, store)

	var item models.LedgerItem
	require.NoError(t, attributevalue.UnmarshalMap(fake.items["g/alice"], &item))
	assert.Equal(t, "g", item.CommunityID)
	assert.Equal(t, 134, item.Rating)
	assert.Equal(t, 1, utils.ExtractInt(fake.items["g/alice"], "hosted", 0))
}

func TestDynamoLedgerStoreDefaultsMissingRating(t *testing.T) {
	fake := &fakeDynamo{items: map[string]map[string]types.AttributeValue{
		"g/carol": {
			"communityId":   utils.StringAttr("g"),
			"participantId": utils.StringAttr("carol"),
			"played":        &types.AttributeValueMemberN{Value: "3"},
		},
	}}
	store := NewDynamoLedgerStore(&DynamoService{Client: fake, Log: zerolog.Nop()}, "")

	records, err := store.LoadLedger(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, models.RatingRecord{Rating: models.DefaultRating, Played: 3}, records["carol"])
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3LedgerStore(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewS3LedgerStore(&S3Service{Client: fake, Bucket: "bucket"}, "")
	exerciseStore(t, store)
	assert.Contains(t, fake.objects, "bucket/ledgers/g/stats.json")
}
