package customers

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// Payload is the customer creation request
type Payload struct {
	Email       string
	Description string
	Metadata    Metadata
}

// Metadata is a string map that remembers insertion order
type Metadata struct {
	keys   []string
	values map[string]string
}

// Set adds or overwrites key. Overwriting keeps the original position.
func (m *Metadata) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key
func (m *Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns keys in insertion order
func (m *Metadata) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *Metadata) Len() int {
	return len(m.keys)
}

// Map returns a copy of the entries. Nil when empty.
func (m *Metadata) Map() map[string]string {
	if len(m.keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// BuildPayload assembles the customer payload from doc.
// Name fields take precedence over email for the description. Absent and
// falsy extra fields are left out of the metadata.
func BuildPayload(doc *document.Document, opts Options) (*Payload, error) {
	p := &Payload{}

	if opts.EmailField != "" {
		email, err := readString(doc, opts.EmailField)
		if err != nil {
			return nil, err
		}
		p.Email = email
		p.Description = email
	}

	if opts.FirstNameField != "" && opts.LastNameField != "" {
		first, err := readString(doc, opts.FirstNameField)
		if err != nil {
			return nil, err
		}
		last, err := readString(doc, opts.LastNameField)
		if err != nil {
			return nil, err
		}

		var parts []string
		if first != "" {
			parts = append(parts, first)
			p.Metadata.Set(opts.FirstNameField, first)
		}
		if last != "" {
			parts = append(parts, last)
			p.Metadata.Set(opts.LastNameField, last)
		}
		if len(parts) > 0 {
			p.Description = strings.Join(parts, " ")
		}
	}

	for _, field := range opts.ExtraFields {
		if field == document.IDField {
			p.Metadata.Set(field, doc.ID().Hex())
			continue
		}
		v, ok := doc.Get(field)
		if !ok || isFalsy(v) {
			continue
		}
		s, err := metadataValue(v)
		if err != nil {
			return nil, &FieldError{Field: field, Err: err}
		}
		p.Metadata.Set(field, s)
	}

	return p, nil
}

// readString returns "" for absent and falsy values
func readString(doc *document.Document, field string) (string, error) {
	v, ok := doc.Get(field)
	if !ok || isFalsy(v) {
		return "", nil
	}
	s, err := metadataValue(v)
	if err != nil {
		return "", &FieldError{Field: field, Err: err}
	}
	return s, nil
}

func metadataValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case primitive.ObjectID:
		return t.Hex(), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339), nil
	case fmt.Stringer:
		return t.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.String:
		return rv.String(), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// isFalsy matches nil, empty strings, false, numeric zero, NaN and the zero ObjectID
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case primitive.ObjectID:
		return t.IsZero()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || math.IsNaN(f)
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
