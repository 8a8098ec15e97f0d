package document

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event names a point in the save flow at which pre hooks run
type Event string

const (
	// EventValidate hooks run before schema validation
	EventValidate Event = "validate"
	// EventSave hooks run after validation, right before the store write
	EventSave Event = "save"
)

// Valid reports whether the model runs hooks for this event
func (e Event) Valid() bool {
	return e == EventValidate || e == EventSave
}

// FieldType is the declared type of a schema path
type FieldType string

const (
	String   FieldType = "string"
	Number   FieldType = "number"
	Bool     FieldType = "bool"
	ObjectID FieldType = "objectid"
	Date     FieldType = "date"
	// Mixed accepts any value
	Mixed FieldType = "mixed"
)

// Field declares a schema path
type Field struct {
	Type FieldType

	// Unique asks stores implementing Indexer for a sparse unique index
	Unique bool

	// Trim strips surrounding whitespace from string values before persisting
	Trim bool

	// Required rejects saves where the value is absent, nil or ""
	Required bool
}

// Hook runs before a document is persisted. A non-nil error aborts the save.
type Hook func(ctx context.Context, doc *Document) error

// Plugin mutates a schema once, typically adding paths and hooks.
type Plugin func(s *Schema) error

// Schema describes the fields of a document model and the pre hooks bound
// to its lifecycle events. Mutations are expected at setup time; reads are
// safe from concurrent saves.
type Schema struct {
	mu     sync.RWMutex
	fields map[string]Field
	hooks  map[Event][]Hook
}

// NewSchema creates a schema with the given paths
func NewSchema(fields map[string]Field) *Schema {
	s := &Schema{
		fields: make(map[string]Field, len(fields)),
		hooks:  make(map[Event][]Hook),
	}
	for name, f := range fields {
		s.fields[name] = f
	}
	return s
}

// Path returns the declaration for name
func (s *Schema) Path(name string) (Field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fields[name]
	return f, ok
}

// AddPath declares a new path
func (s *Schema) AddPath(name string, f Field) error {
	if _, err := splitPath(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fields[name]; ok {
		return fmt.Errorf("%w: %s", ErrPathExists, name)
	}
	if f.Type == "" {
		f.Type = Mixed
	}
	s.fields[name] = f
	return nil
}

// Paths returns all declared paths in lexical order
func (s *Schema) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.fields))
	for name := range s.fields {
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths
}

// UniquePaths returns the paths declared with Unique, in lexical order
func (s *Schema) UniquePaths() []string {
	var unique []string
	for _, name := range s.Paths() {
		if f, _ := s.Path(name); f.Unique {
			unique = append(unique, name)
		}
	}
	return unique
}

// Pre registers a hook for event. Hooks run in registration order.
func (s *Schema) Pre(event Event, hook Hook) error {
	if !event.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if hook == nil {
		return fmt.Errorf("nil hook for event %q", event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks[event] = append(s.hooks[event], hook)
	return nil
}

// Plugin applies p to the schema
func (s *Schema) Plugin(p Plugin) error {
	return p(s)
}

func (s *Schema) hooksFor(event Event) []Hook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hooks := make([]Hook, len(s.hooks[event]))
	copy(hooks, s.hooks[event])
	return hooks
}

// normalize applies trim declarations in place
func (s *Schema) normalize(doc *Document) {
	for _, name := range s.Paths() {
		f, _ := s.Path(name)
		if !f.Trim {
			continue
		}
		v, ok := doc.Get(name)
		if !ok {
			continue
		}
		if str, isStr := v.(string); isStr {
			_ = doc.Set(name, strings.TrimSpace(str))
		}
	}
}

// validate checks required and typed paths
func (s *Schema) validate(doc *Document) error {
	for _, name := range s.Paths() {
		f, _ := s.Path(name)
		v, ok := doc.Get(name)
		if !ok || v == nil {
			if f.Required {
				return fmt.Errorf("%w: %s is required", ErrValidation, name)
			}
			continue
		}
		if f.Required {
			if str, isStr := v.(string); isStr && str == "" {
				return fmt.Errorf("%w: %s is required", ErrValidation, name)
			}
		}
		if !typeMatches(f.Type, v) {
			return fmt.Errorf("%w: %s must be %s, got %T", ErrValidation, name, f.Type, v)
		}
	}
	return nil
}

func typeMatches(t FieldType, v any) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case Bool:
		_, ok := v.(bool)
		return ok
	case ObjectID:
		switch id := v.(type) {
		case primitive.ObjectID:
			return true
		case string:
			// JSON-backed stores hand ObjectIDs back as hex
			return primitive.IsValidObjectID(id)
		}
		return false
	case Date:
		switch d := v.(type) {
		case time.Time, primitive.DateTime:
			return true
		case string:
			_, err := time.Parse(time.RFC3339Nano, d)
			return err == nil
		}
		return false
	default:
		return true
	}
}
