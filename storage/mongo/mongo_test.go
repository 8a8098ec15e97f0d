package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

var (
	_ document.Store   = (*Storage)(nil)
	_ document.Indexer = (*Storage)(nil)
)

// setupTestStorage connects to MONGO_TEST_URI (default localhost) and
// isolates each test in its own database
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	db := client.Database(fmt.Sprintf("stripecustomers_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s, err := New(db, Config{})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresDatabase(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestDocID(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, oid, docID(oid.Hex()))
	assert.Equal(t, "legacy-1", docID("legacy-1"))
}

func TestFromBSON(t *testing.T) {
	got := fromBSONMap(bson.M{
		"profile": bson.M{"first": "Ada"},
		"address": bson.D{{Key: "city", Value: "London"}},
		"tags":    bson.A{"a", bson.M{"b": 1}},
	})

	assert.Equal(t, map[string]any{"first": "Ada"}, got["profile"])
	assert.Equal(t, map[string]any{"city": "London"}, got["address"])
	assert.Equal(t, []any{"a", map[string]any{"b": 1}}, got["tags"])
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "stripe_customer_id_unique", indexName("stripe_customer_id"))
	assert.Equal(t, "billing_id_unique", indexName("billing.id"))
}

func TestStorage_InsertGetReplace(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	id := primitive.NewObjectID().Hex()

	require.NoError(t, s.Insert(ctx, "customers", id, map[string]any{
		"email":   "ada@example.com",
		"profile": map[string]any{"first": "Ada"},
	}))

	err := s.Insert(ctx, "customers", id, map[string]any{})
	assert.True(t, errors.Is(err, document.ErrDuplicateKey))

	got, err := s.Get(ctx, "customers", id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got["email"])
	assert.Equal(t, map[string]any{"first": "Ada"}, got["profile"])
	assert.NotContains(t, got, "_id")

	require.NoError(t, s.Replace(ctx, "customers", id, map[string]any{"email": "lovelace@example.com"}))
	got, err = s.Get(ctx, "customers", id)
	require.NoError(t, err)
	assert.Equal(t, "lovelace@example.com", got["email"])
	assert.NotContains(t, got, "profile")

	err = s.Replace(ctx, "customers", primitive.NewObjectID().Hex(), map[string]any{})
	assert.True(t, errors.Is(err, document.ErrNotFound))

	_, err = s.Get(ctx, "customers", primitive.NewObjectID().Hex())
	assert.True(t, errors.Is(err, document.ErrNotFound))
}

func TestStorage_UniqueIndex(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureUniqueIndex(ctx, "customers", "stripe_customer_id"))
	require.NoError(t, s.EnsureUniqueIndex(ctx, "customers", "stripe_customer_id"))

	a := primitive.NewObjectID().Hex()
	require.NoError(t, s.Insert(ctx, "customers", a, map[string]any{}))
	require.NoError(t, s.Insert(ctx, "customers", primitive.NewObjectID().Hex(), map[string]any{}))
	require.NoError(t, s.Insert(ctx, "customers", primitive.NewObjectID().Hex(), map[string]any{"stripe_customer_id": ""}))
	require.NoError(t, s.Insert(ctx, "customers", primitive.NewObjectID().Hex(), map[string]any{"stripe_customer_id": "cus_1"}))

	err := s.Insert(ctx, "customers", primitive.NewObjectID().Hex(), map[string]any{"stripe_customer_id": "cus_1"})
	assert.True(t, errors.Is(err, document.ErrDuplicateKey))

	err = s.Replace(ctx, "customers", a, map[string]any{"stripe_customer_id": "cus_1"})
	assert.True(t, errors.Is(err, document.ErrDuplicateKey))
}
