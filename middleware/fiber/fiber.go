// Package fiber provides Fiber middleware that loads the document named by a
// request and stores it in the request locals
package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mihaimyh/stripecustomers/pkg/api"
	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// LocalsKey is the Fiber locals key the loaded document is stored under
const LocalsKey = "stripecustomers:document"

// IDExtractor extracts the raw document ID from a Fiber context
type IDExtractor func(c *fiber.Ctx) string

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
	// If nil, replies with a JSON error and the status from api.StatusCode.
	OnError func(c *fiber.Ctx, err error) error
}

// Middleware creates a Fiber middleware that loads the request's document
func Middleware(cfg Config) fiber.Handler {
	if cfg.Model == nil {
		panic("stripecustomers/fiber: Config.Model is required")
	}
	if cfg.GetID == nil {
		panic("stripecustomers/fiber: Config.GetID is required")
	}

	return func(c *fiber.Ctx) error {
		doc, err := api.LoadDocument(c.UserContext(), cfg.Model, cfg.GetID(c))
		if err == nil && cfg.RequireField != "" {
			err = api.RequireField(doc, cfg.RequireField)
		}
		if err != nil {
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(api.StatusCode(err)).JSON(api.ErrorResponse{Error: err.Error()})
		}

		c.Locals(LocalsKey, doc)
		return c.Next()
	}
}

// Document returns the document loaded by Middleware
func Document(c *fiber.Ctx) (*document.Document, bool) {
	doc, ok := c.Locals(LocalsKey).(*document.Document)
	return doc, ok && doc != nil
}

// FromParam returns an IDExtractor that gets the ID from a route parameter
func FromParam(paramName string) IDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Params(paramName)
	}
}

// FromHeader returns an IDExtractor that gets the ID from a header
func FromHeader(headerName string) IDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}

// FromQuery returns an IDExtractor that gets the ID from a query parameter
func FromQuery(name string) IDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Query(name)
	}
}
