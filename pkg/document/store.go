package document

import "context"

// Store defines the interface for document persistence.
// Documents are keyed by collection and the hex form of their ObjectID. The
// data passed in and returned never contains "_id".
type Store interface {
	// Insert stores a new document.
	// Returns ErrDuplicateKey if the ID or a unique field value is taken.
	Insert(ctx context.Context, collection, id string, data map[string]any) error

	// Replace overwrites an existing document.
	// Returns ErrNotFound if it does not exist, ErrDuplicateKey on unique violations.
	Replace(ctx context.Context, collection, id string, data map[string]any) error

	// Get retrieves a document.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (map[string]any, error)
}

// Indexer is implemented by stores that can enforce unique fields.
// Every adapter indexes the same values, those picked by IndexValue:
// non-empty strings, compared exactly. Documents holding anything else at
// field are not indexed.
type Indexer interface {
	// EnsureUniqueIndex creates the index if it does not exist yet.
	EnsureUniqueIndex(ctx context.Context, collection, field string) error
}

// Deleter is implemented by stores that can drop a document, releasing its
// unique index entries. Cache tiers must implement it.
type Deleter interface {
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
}

// IndexValue returns the value a unique index holds for field.
// Only non-empty strings are indexed.
func IndexValue(data map[string]any, field string) (string, bool) {
	v, _ := Get(data, field)
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
