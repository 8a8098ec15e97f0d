package api

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

const maxIDLen = 64

// ParseID trims rawID and converts it to an ObjectID
func ParseID(rawID string) (primitive.ObjectID, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return primitive.NilObjectID, ErrMissingID
	}
	if len(rawID) > maxIDLen {
		return primitive.NilObjectID, ErrInvalidID
	}
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, rawID)
	}
	return id, nil
}

// LoadDocument parses rawID and loads the matching document from model.
// Map the returned error with StatusCode.
func LoadDocument(ctx context.Context, model *document.Model, rawID string) (*document.Document, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	return model.FindByID(ctx, id)
}

// RequireField returns ErrMissingField unless doc holds a non-blank string
// at path. Used to gate routes that need a synced customer ID.
func RequireField(doc *document.Document, path string) error {
	v, _ := doc.Get(path)
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return nil
	}
	return fmt.Errorf("%w %q", ErrMissingField, path)
}

// RejectProtected returns ErrProtectedField when data holds any of fields.
// A null value counts as set.
func RejectProtected(data map[string]any, fields []string) error {
	for _, field := range fields {
		if _, ok := document.Get(data, field); ok {
			return fmt.Errorf("%w: %q", ErrProtectedField, field)
		}
	}
	return nil
}
