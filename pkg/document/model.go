package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	saveStatusInserted   = "inserted"
	saveStatusReplaced   = "replaced"
	saveStatusHookFailed = "hook_failed"
	saveStatusInvalid    = "invalid"
	saveStatusError      = "error"
)

// Config holds model configuration
type Config struct {
	// Collection is the store collection (or table partition) for this model (required)
	Collection string

	// Schema describes the fields and hooks (required)
	Schema *Schema

	// Store persists documents (required)
	Store Store

	// Logger is optional; defaults to NoopLogger
	Logger Logger

	// Metrics is optional; defaults to NoopMetrics
	Metrics Metrics
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.Schema == nil {
		return fmt.Errorf("schema is required")
	}
	if c.Store == nil {
		return ErrStoreUnavailable
	}
	return nil
}

// Model binds a schema to a store collection and runs the save lifecycle
type Model struct {
	collection string
	schema     *Schema
	store      Store
	logger     Logger
	metrics    Metrics
}

// NewModel creates a new model with the given configuration
func NewModel(config Config) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	return &Model{
		collection: config.Collection,
		schema:     config.Schema,
		store:      config.Store,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Collection returns the collection name
func (m *Model) Collection() string {
	return m.collection
}

// Schema returns the model schema
func (m *Model) Schema() *Schema {
	return m.schema
}

// New creates an unsaved document for this model
func (m *Model) New(data map[string]any) *Document {
	return New(data)
}

// EnsureIndexes creates unique indexes for every unique schema path.
// It is a no-op when the store does not implement Indexer.
func (m *Model) EnsureIndexes(ctx context.Context) error {
	for _, path := range m.schema.UniquePaths() {
		if f, _ := m.schema.Path(path); f.Type != String {
			return fmt.Errorf("%w: %s is %s", ErrUnsupportedIndex, path, f.Type)
		}
	}

	indexer, ok := m.store.(Indexer)
	if !ok {
		m.logger.Warn("store does not support unique indexes",
			LogField{"collection", m.collection})
		return nil
	}

	for _, path := range m.schema.UniquePaths() {
		start := time.Now()
		err := indexer.EnsureUniqueIndex(ctx, m.collection, path)
		m.metrics.RecordStorageOperation("ensure_index", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to ensure unique index on %s: %w", path, err)
		}
	}
	return nil
}

// Save runs the pre hooks and persists doc.
//
// Order: validate hooks, trim and validation, save hooks, trim, store write.
// A hook error aborts the save before anything is written and is returned
// as is, so callers can inspect it with errors.As.
func (m *Model) Save(ctx context.Context, doc *Document) error {
	start := time.Now()
	defer func() {
		m.metrics.RecordSaveDuration(m.collection, time.Since(start))
	}()

	if err := m.runHooks(ctx, EventValidate, doc); err != nil {
		m.metrics.RecordSave(m.collection, saveStatusHookFailed)
		return err
	}

	m.schema.normalize(doc)
	if err := m.schema.validate(doc); err != nil {
		m.metrics.RecordSave(m.collection, saveStatusInvalid)
		return err
	}

	if err := m.runHooks(ctx, EventSave, doc); err != nil {
		m.metrics.RecordSave(m.collection, saveStatusHookFailed)
		return err
	}
	m.schema.normalize(doc)

	id := doc.ID().Hex()
	fields := doc.Fields()

	op := "replace"
	status := saveStatusReplaced
	if doc.IsNew() {
		op = "insert"
		status = saveStatusInserted
	}

	opStart := time.Now()
	var err error
	if doc.IsNew() {
		err = m.store.Insert(ctx, m.collection, id, fields)
	} else {
		err = m.store.Replace(ctx, m.collection, id, fields)
	}
	m.metrics.RecordStorageOperation(op, time.Since(opStart), err)
	if err != nil {
		m.metrics.RecordSave(m.collection, saveStatusError)
		m.logger.Error("failed to persist document",
			LogField{"collection", m.collection},
			LogField{"id", id},
			LogField{"operation", op},
			LogField{"error", err})
		return fmt.Errorf("failed to %s document %s: %w", op, id, err)
	}

	doc.markPersisted()
	m.metrics.RecordSave(m.collection, status)
	return nil
}

// FindByID loads a persisted document
func (m *Model) FindByID(ctx context.Context, id primitive.ObjectID) (*Document, error) {
	start := time.Now()
	data, err := m.store.Get(ctx, m.collection, id.Hex())
	m.metrics.RecordStorageOperation("get", time.Since(start), err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id.Hex(), err)
	}
	return hydrate(id, data), nil
}

func (m *Model) runHooks(ctx context.Context, event Event, doc *Document) error {
	for _, hook := range m.schema.hooksFor(event) {
		if err := hook(ctx, doc); err != nil {
			m.metrics.RecordHook(m.collection, event, "error")
			m.logger.Warn("pre hook aborted save",
				LogField{"collection", m.collection},
				LogField{"event", string(event)},
				LogField{"id", doc.ID().Hex()},
				LogField{"error", err})
			return err
		}
		m.metrics.RecordHook(m.collection, event, "success")
	}
	return nil
}
