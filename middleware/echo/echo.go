// Package echo provides Echo middleware that loads the document named by a
// request and stores it in the Echo context
package echo

import (
	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/stripecustomers/pkg/api"
	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// ContextKey is the Echo context key the loaded document is stored under
const ContextKey = "stripecustomers:document"

// IDExtractor extracts the raw document ID from an Echo context
type IDExtractor func(c echo.Context) string

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
	OnError func(c echo.Context, err error) error
}

// Middleware creates an Echo middleware that loads the request's document
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Model == nil {
		panic("stripecustomers/echo: Config.Model is required")
	}
	if cfg.GetID == nil {
		panic("stripecustomers/echo: Config.GetID is required")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			doc, err := api.LoadDocument(c.Request().Context(), cfg.Model, cfg.GetID(c))
			if err == nil && cfg.RequireField != "" {
				err = api.RequireField(doc, cfg.RequireField)
			}
			if err != nil {
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return c.JSON(api.StatusCode(err), api.ErrorResponse{Error: err.Error()})
			}

			c.Set(ContextKey, doc)
			return next(c)
		}
	}
}

// Document returns the document loaded by Middleware
func Document(c echo.Context) (*document.Document, bool) {
	doc, ok := c.Get(ContextKey).(*document.Document)
	return doc, ok && doc != nil
}

// FromParam returns an IDExtractor that gets the ID from a path parameter
func FromParam(paramName string) IDExtractor {
	return func(c echo.Context) string {
		return c.Param(paramName)
	}
}

// FromHeader returns an IDExtractor that gets the ID from a header
func FromHeader(headerName string) IDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}

// FromQuery returns an IDExtractor that gets the ID from a query parameter
func FromQuery(name string) IDExtractor {
	return func(c echo.Context) string {
		return c.QueryParam(name)
	}
}
