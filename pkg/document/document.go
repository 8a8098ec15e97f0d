package document

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the identity field of every document
const IDField = "_id"

// Document is a single record managed by a Model. It tracks whether it has
// been persisted yet and exposes dotted-path field access.
type Document struct {
	mu    sync.RWMutex
	id    primitive.ObjectID
	data  map[string]any
	isNew bool
}

// New creates an unsaved document. An "_id" in data is used as the identity
// when it is an ObjectID or its hex form; otherwise a fresh ObjectID is generated.
func New(data map[string]any) *Document {
	fields := cloneMap(data)
	if fields == nil {
		fields = make(map[string]any)
	}

	id := parseID(fields[IDField])
	delete(fields, IDField)

	return &Document{
		id:    id,
		data:  fields,
		isNew: true,
	}
}

// hydrate rebuilds a persisted document from store data
func hydrate(id primitive.ObjectID, fields map[string]any) *Document {
	data := cloneMap(fields)
	if data == nil {
		data = make(map[string]any)
	}
	delete(data, IDField)
	return &Document{id: id, data: data}
}

func parseID(v any) primitive.ObjectID {
	switch id := v.(type) {
	case primitive.ObjectID:
		if !id.IsZero() {
			return id
		}
	case string:
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			return oid
		}
	}
	return primitive.NewObjectID()
}

// ID returns the document identity
func (d *Document) ID() primitive.ObjectID {
	return d.id
}

// IsNew reports whether the document has not been persisted yet
func (d *Document) IsNew() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isNew
}

// Get returns the value at a dotted path. "_id" yields the ObjectID.
func (d *Document) Get(path string) (any, bool) {
	if path == IDField {
		return d.id, true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return Get(d.data, path)
}

// Set writes value at a dotted path
func (d *Document) Set(path string, value any) error {
	if path == IDField {
		return ErrImmutableID
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return Set(d.data, path, value)
}

// Data returns a deep copy of the document including "_id"
func (d *Document) Data() map[string]any {
	out := d.Fields()
	out[IDField] = d.id
	return out
}

// Fields returns a deep copy of the document without "_id"
func (d *Document) Fields() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneMap(d.data)
}

func (d *Document) markPersisted() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isNew = false
}
