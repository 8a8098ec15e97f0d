// Package mongo provides a MongoDB implementation of document.Store.
// Each model collection maps to one MongoDB collection and "_id" holds the
// document ObjectID.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// Storage implements document.Store and document.Indexer using MongoDB
type Storage struct {
	db               *mongo.Database
	collectionPrefix string
}

// Config holds MongoDB storage configuration
type Config struct {
	// CollectionPrefix is prepended to every collection name
	CollectionPrefix string
}

// New creates a new MongoDB storage adapter
func New(db *mongo.Database, config Config) (*Storage, error) {
	if db == nil {
		return nil, fmt.Errorf("mongo database is required")
	}
	return &Storage{db: db, collectionPrefix: config.CollectionPrefix}, nil
}

// Connect opens a client for uri and verifies it with a ping
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// Insert implements document.Store
func (s *Storage) Insert(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := s.collection(collection).InsertOne(ctx, toBSON(id, data))
	if err != nil {
		return mapError(err, collection, id)
	}
	return nil
}

// Replace implements document.Store
func (s *Storage) Replace(ctx context.Context, collection, id string, data map[string]any) error {
	res, err := s.collection(collection).ReplaceOne(ctx, bson.M{document.IDField: docID(id)}, toBSON(id, data))
	if err != nil {
		return mapError(err, collection, id)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	return nil
}

// Get implements document.Store
func (s *Storage) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	var raw bson.M
	err := s.collection(collection).FindOne(ctx, bson.M{document.IDField: docID(id)}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	delete(raw, document.IDField)
	return fromBSONMap(raw), nil
}

// EnsureUniqueIndex implements document.Indexer.
// The index only covers non-empty strings, matching document.IndexValue.
func (s *Storage) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := document.ValidatePath(field); err != nil {
		return err
	}

	model := mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
		Options: options.Index().
			SetName(indexName(field)).
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				field: bson.M{
					"$type": "string",
					"$gt":   "",
				},
			}),
	}

	if _, err := s.collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return mapError(err, collection, field)
	}
	return nil
}

func (s *Storage) collection(name string) *mongo.Collection {
	return s.db.Collection(s.collectionPrefix + name)
}

func indexName(field string) string {
	return strings.ReplaceAll(field, ".", "_") + "_unique"
}

// docID stores hex ids as ObjectIDs and anything else as a plain string
func docID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func toBSON(id string, data map[string]any) bson.M {
	out := make(bson.M, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[document.IDField] = docID(id)
	return out
}

// fromBSONMap converts driver container types into plain maps and slices
func fromBSONMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromBSON(v)
	}
	return out
}

func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.M:
		return fromBSONMap(t)
	case map[string]any:
		return fromBSONMap(t)
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSON(e)
		}
		return out
	default:
		return v
	}
}

func mapError(err error, collection, key string) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s/%s", document.ErrDuplicateKey, collection, key)
	}
	return fmt.Errorf("failed to write %s/%s: %w", collection, key, err)
}
