package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew_GeneratesID(t *testing.T) {
	doc := New(map[string]any{"email": "ada@example.com"})

	assert.False(t, doc.ID().IsZero())
	assert.True(t, doc.IsNew())

	_, hasID := doc.Fields()[IDField]
	assert.False(t, hasID, "fields must not carry _id")
	assert.Equal(t, doc.ID(), doc.Data()[IDField])
}

func TestNew_UsesProvidedID(t *testing.T) {
	oid := primitive.NewObjectID()

	assert.Equal(t, oid, New(map[string]any{IDField: oid}).ID())
	assert.Equal(t, oid, New(map[string]any{IDField: oid.Hex()}).ID())

	other := New(map[string]any{IDField: "not-an-object-id"}).ID()
	assert.NotEqual(t, oid, other)
	assert.False(t, other.IsZero())
}

func TestDocument_GetSet(t *testing.T) {
	doc := New(nil)

	require.NoError(t, doc.Set("name.first", "Ada"))
	v, ok := doc.Get("name.first")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)

	id, ok := doc.Get(IDField)
	require.True(t, ok)
	assert.Equal(t, doc.ID(), id)

	err := doc.Set(IDField, primitive.NewObjectID())
	assert.True(t, errors.Is(err, ErrImmutableID))
}

func TestDocument_DoesNotAliasInput(t *testing.T) {
	input := map[string]any{"profile": map[string]any{"first": "Ada"}}
	doc := New(input)

	require.NoError(t, doc.Set("profile.first", "Grace"))

	assert.Equal(t, "Ada", input["profile"].(map[string]any)["first"])
}
