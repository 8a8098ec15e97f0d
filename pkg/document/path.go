package document

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Get resolves a dotted path such as "address.city" against nested
// string-keyed maps. Plain names are a one-segment path. The boolean is false
// when any segment is missing or an intermediate value is not a map.
func Get(data map[string]any, path string) (any, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	var cur any = data
	for _, seg := range segs {
		v, ok := lookup(cur, seg)
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Set writes value at a dotted path, creating intermediate maps as needed.
func Set(data map[string]any, path string, value any) error {
	if data == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidPath)
	}
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	cur := data
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok || next == nil {
			child := make(map[string]any)
			cur[seg] = child
			cur = child
			continue
		}
		switch m := next.(type) {
		case map[string]any:
			cur = m
		case primitive.M:
			cur = m
		default:
			return fmt.Errorf("%w: %q holds %T, not an object", ErrInvalidPath, seg, next)
		}
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// ValidatePath reports whether path is a well-formed dotted path
func ValidatePath(path string) error {
	_, err := splitPath(path)
	return err
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

func lookup(cur any, key string) (any, bool) {
	switch m := cur.(type) {
	case map[string]any:
		v, ok := m[key]
		return v, ok
	case primitive.M:
		v, ok := m[key]
		return v, ok
	case primitive.D:
		for _, e := range m {
			if e.Key == key {
				return e.Value, true
			}
		}
		return nil, false
	}

	// Any other map keyed by a string kind, e.g. map[string]string
	rv := reflect.ValueOf(cur)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

// clone deep-copies the map and slice containers of a document value so
// callers and stores never share mutable state.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case primitive.M:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

// Clone returns a deep copy of document data.
func Clone(data map[string]any) map[string]any {
	return cloneMap(data)
}
