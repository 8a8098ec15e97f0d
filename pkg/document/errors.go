package document

import "errors"

var (
	// ErrNotFound is returned when a document does not exist in the store
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateKey is returned when an insert or replace violates a unique field
	// or reuses an existing document ID
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrValidation is returned when a document does not satisfy its schema
	ErrValidation = errors.New("document validation failed")

	// ErrPathExists is returned when a schema path is declared twice
	ErrPathExists = errors.New("schema path already declared")

	// ErrInvalidPath is returned for empty or malformed dotted paths
	ErrInvalidPath = errors.New("invalid field path")

	// ErrImmutableID is returned when a caller tries to overwrite the identity field
	ErrImmutableID = errors.New("identity field is immutable")

	// ErrUnknownEvent is returned when a hook targets an unsupported lifecycle event
	ErrUnknownEvent = errors.New("unknown lifecycle event")

	// ErrUnsupportedIndex is returned when a unique path is not a String
	ErrUnsupportedIndex = errors.New("unique paths must be strings")

	// ErrStoreUnavailable is returned when a model is created without a store
	ErrStoreUnavailable = errors.New("document store unavailable")
)
