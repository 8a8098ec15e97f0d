package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSchema_AddPath(t *testing.T) {
	s := NewSchema(map[string]Field{
		"email": {Type: String},
	})

	require.NoError(t, s.AddPath("stripe_customer_id", Field{Type: String, Unique: true, Trim: true}))

	f, ok := s.Path("stripe_customer_id")
	require.True(t, ok)
	assert.True(t, f.Unique)
	assert.True(t, f.Trim)

	err := s.AddPath("email", Field{Type: String})
	assert.True(t, errors.Is(err, ErrPathExists))

	err = s.AddPath("bad..path", Field{})
	assert.True(t, errors.Is(err, ErrInvalidPath))

	assert.Equal(t, []string{"email", "stripe_customer_id"}, s.Paths())
	assert.Equal(t, []string{"stripe_customer_id"}, s.UniquePaths())
}

func TestSchema_AddPathDefaultsToMixed(t *testing.T) {
	s := NewSchema(nil)
	require.NoError(t, s.AddPath("notes", Field{}))

	f, _ := s.Path("notes")
	assert.Equal(t, Mixed, f.Type)
}

func TestSchema_Pre(t *testing.T) {
	s := NewSchema(nil)
	noop := func(context.Context, *Document) error { return nil }

	require.NoError(t, s.Pre(EventSave, noop))
	require.NoError(t, s.Pre(EventValidate, noop))

	err := s.Pre(Event("remove"), noop)
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	assert.Error(t, s.Pre(EventSave, nil))
	assert.Len(t, s.hooksFor(EventSave), 1)
	assert.Len(t, s.hooksFor(EventValidate), 1)
}

func TestSchema_Plugin(t *testing.T) {
	s := NewSchema(nil)

	err := s.Plugin(func(s *Schema) error {
		return s.AddPath("plan", Field{Type: String})
	})
	require.NoError(t, err)

	_, ok := s.Path("plan")
	assert.True(t, ok)
}

func TestSchema_Validate(t *testing.T) {
	s := NewSchema(map[string]Field{
		"email":    {Type: String, Required: true},
		"age":      {Type: Number},
		"active":   {Type: Bool},
		"owner":    {Type: ObjectID},
		"metadata": {Type: Mixed},
	})

	tests := []struct {
		name    string
		data    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"email": "a@b.c", "age": 3, "active": true, "owner": primitive.NewObjectID()}, false},
		{"owner as hex", map[string]any{"email": "a@b.c", "owner": primitive.NewObjectID().Hex()}, false},
		{"json number", map[string]any{"email": "a@b.c", "age": 3.0}, false},
		{"missing required", map[string]any{"age": 3}, true},
		{"empty required", map[string]any{"email": ""}, true},
		{"wrong type", map[string]any{"email": "a@b.c", "age": "three"}, true},
		{"bad object id", map[string]any{"email": "a@b.c", "owner": "nope"}, true},
		{"mixed accepts anything", map[string]any{"email": "a@b.c", "metadata": []any{1, "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.validate(New(tt.data))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchema_NormalizeTrims(t *testing.T) {
	s := NewSchema(map[string]Field{
		"code":         {Type: String, Trim: true},
		"address.city": {Type: String, Trim: true},
		"raw":          {Type: String},
	})

	doc := New(map[string]any{
		"code":    "  ABC ",
		"address": map[string]any{"city": " Paris"},
		"raw":     " keep ",
	})
	s.normalize(doc)

	code, _ := doc.Get("code")
	city, _ := doc.Get("address.city")
	raw, _ := doc.Get("raw")
	assert.Equal(t, "ABC", code)
	assert.Equal(t, "Paris", city)
	assert.Equal(t, " keep ", raw)
}
