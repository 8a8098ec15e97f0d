// Package gin provides Gin middleware that loads the document named by a
// request and stores it in the Gin context
package gin

import (
	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/stripecustomers/pkg/api"
	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// ContextKey is the Gin context key the loaded document is stored under
const ContextKey = "stripecustomers:document"

// IDExtractor extracts the raw document ID from a Gin context
type IDExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Model loads documents (required)
	Model *document.Model

	// GetID extracts the document ID from context (required)
	GetID IDExtractor

	// RequireField rejects documents with no value at this path with 409.
	// Optional.
	RequireField string

	// OnError is called when the document cannot be loaded.
	// If nil, aborts with a JSON error and the status from api.StatusCode.
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that loads the request's document
func Middleware(cfg Config) gongin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Model == nil {
		panic("stripecustomers/gin: Config.Model is required")
	}
	if cfg.GetID == nil {
		panic("stripecustomers/gin: Config.GetID is required")
	}

	return func(c *gongin.Context) {
		doc, err := api.LoadDocument(c.Request.Context(), cfg.Model, cfg.GetID(c))
		if err == nil && cfg.RequireField != "" {
			err = api.RequireField(doc, cfg.RequireField)
		}
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(api.StatusCode(err), api.ErrorResponse{Error: err.Error()})
			}
			c.Abort()
			return
		}

		c.Set(ContextKey, doc)
		c.Next()
	}
}

// Document returns the document loaded by Middleware
func Document(c *gongin.Context) (*document.Document, bool) {
	val, exists := c.Get(ContextKey)
	if !exists {
		return nil, false
	}
	doc, ok := val.(*document.Document)
	return doc, ok && doc != nil
}

// FromParam returns an IDExtractor that gets the ID from a route parameter
func FromParam(paramName string) IDExtractor {
	return func(c *gongin.Context) string {
		return c.Param(paramName)
	}
}

// FromHeader returns an IDExtractor that gets the ID from a header
func FromHeader(headerName string) IDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}

// FromQuery returns an IDExtractor that gets the ID from a query parameter
func FromQuery(name string) IDExtractor {
	return func(c *gongin.Context) string {
		return c.Query(name)
	}
}
