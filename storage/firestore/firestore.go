// Package firestore provides a Firestore implementation of document.Store.
// Firestore has no unique indexes, so uniqueness is checked by a query inside
// the write transaction. Unique fields are registered in Firestore itself,
// so every process sharing the database enforces the same set.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"cloud.google.com/go/firestore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// Storage implements document.Store and document.Indexer using Google Cloud Firestore
type Storage struct {
	client           *firestore.Client
	collectionPrefix string
	indexCollection  string
}

// Config holds Firestore storage configuration
type Config struct {
	// CollectionPrefix is prepended to every collection name
	// Default: "" (collection names are used as is)
	CollectionPrefix string

	// IndexCollection holds one document per collection listing its unique
	// fields under "fields". CollectionPrefix applies to it too.
	// Default: "unique_indexes"
	IndexCollection string
}

const defaultIndexCollection = "unique_indexes"

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.IndexCollection == "" {
		config.IndexCollection = defaultIndexCollection
	}

	return &Storage{
		client:           client,
		collectionPrefix: config.CollectionPrefix,
		indexCollection:  config.IndexCollection,
	}, nil
}

// Insert implements document.Store
func (s *Storage) Insert(ctx context.Context, collection, id string, data map[string]any) error {
	ref := s.collection(collection).Doc(id)
	payload := toFirestoreMap(data)

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		fields, err := s.uniqueFields(tx, collection)
		if err != nil {
			return err
		}
		if err := s.checkUnique(tx, collection, id, fields, data); err != nil {
			return err
		}
		return tx.Create(ref, payload)
	})
	return mapError(err, collection, id)
}

// Replace implements document.Store
func (s *Storage) Replace(ctx context.Context, collection, id string, data map[string]any) error {
	ref := s.collection(collection).Doc(id)
	payload := toFirestoreMap(data)

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return document.ErrNotFound
		}
		fields, err := s.uniqueFields(tx, collection)
		if err != nil {
			return err
		}
		if err := s.checkUnique(tx, collection, id, fields, data); err != nil {
			return err
		}
		return tx.Set(ref, payload)
	})
	return mapError(err, collection, id)
}

// Get implements document.Store
func (s *Storage) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	snap, err := s.collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, collection, id)
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	return snap.Data(), nil
}

// EnsureUniqueIndex implements document.Indexer.
// Existing documents are scanned in the same transaction that registers the
// field; duplicates fail with ErrDuplicateKey and leave it unregistered.
func (s *Storage) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := document.ValidatePath(field); err != nil {
		return err
	}

	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		fields, err := s.uniqueFields(tx, collection)
		if err != nil {
			return err
		}
		if slices.Contains(fields, field) {
			return nil
		}

		snaps, err := tx.Documents(s.collection(collection)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		seen := make(map[string]string, len(snaps))
		for _, snap := range snaps {
			key, ok := document.IndexValue(snap.Data(), field)
			if !ok {
				continue
			}
			if owner, taken := seen[key]; taken {
				return fmt.Errorf("%w: %s.%s shared by %s and %s", document.ErrDuplicateKey, collection, field, owner, snap.Ref.ID)
			}
			seen[key] = snap.Ref.ID
		}

		return tx.Set(s.registry(collection), map[string]any{"fields": append(fields, field)})
	})
}

func (s *Storage) collection(name string) *firestore.CollectionRef {
	return s.client.Collection(s.collectionPrefix + name)
}

// registry is the document listing collection's unique fields
func (s *Storage) registry(collection string) *firestore.DocumentRef {
	return s.client.Collection(s.collectionPrefix + s.indexCollection).Doc(collection)
}

// uniqueFields reads the registered fields inside tx, so a concurrent
// EnsureUniqueIndex makes the transaction retry
func (s *Storage) uniqueFields(tx *firestore.Transaction, collection string) ([]string, error) {
	snap, err := tx.Get(s.registry(collection))
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read unique indexes of %s: %w", collection, err)
	}
	return registeredFields(snap.Data()), nil
}

// registeredFields decodes a registry document, in lexical order
func registeredFields(data map[string]any) []string {
	raw, _ := data["fields"].([]any)
	fields := make([]string, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(string); ok && f != "" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return fields
}

// checkUnique must run before any write in tx
func (s *Storage) checkUnique(tx *firestore.Transaction, collection, id string, fields []string, data map[string]any) error {
	for _, field := range fields {
		v, ok := document.IndexValue(data, field)
		if !ok {
			continue
		}
		q := s.collection(collection).Where(field, "==", v).Limit(2)
		snaps, err := tx.Documents(q).GetAll()
		if err != nil {
			return fmt.Errorf("failed to check unique field %s: %w", field, err)
		}
		for _, snap := range snaps {
			if snap.Ref.ID != id {
				return fmt.Errorf("%w: %s.%s", document.ErrDuplicateKey, collection, field)
			}
		}
	}
	return nil
}

func mapError(err error, collection, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, document.ErrNotFound), errors.Is(err, document.ErrDuplicateKey):
		return err
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	case status.Code(err) == codes.AlreadyExists:
		return fmt.Errorf("%w: %s/%s", document.ErrDuplicateKey, collection, id)
	default:
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
}

// toFirestore converts BSON specific values into types Firestore can store
func toFirestore(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.M:
		return toFirestoreMap(t)
	case map[string]any:
		return toFirestoreMap(t)
	case primitive.A:
		return toFirestoreSlice(t)
	case []any:
		return toFirestoreSlice(t)
	default:
		return v
	}
}

func toFirestoreMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = toFirestore(v)
	}
	return out
}

func toFirestoreSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = toFirestore(v)
	}
	return out
}
