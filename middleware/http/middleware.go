// Package http provides net/http middleware that loads the document named by a
// request and stores it in the request context
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mihaimyh/stripecustomers/pkg/api"
	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// IDExtractor extracts the raw document ID from an HTTP request
type IDExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Model loads documents (required)
	Model *document.Model

	// GetID extracts the document ID from the request (required)
	GetID IDExtractor

	// RequireField rejects documents with no value at this path with 409,
	// e.g. "stripe_customer_id" for routes that need a synced customer.
	// Optional.
	RequireField string

	// OnError is called when the document cannot be loaded.
	// If nil, replies with a JSON error and the status from api.StatusCode.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

type contextKey struct{}

// Middleware creates an HTTP middleware that loads the request's document
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.Model == nil {
		panic("stripecustomers/http: Config.Model is required")
	}
	if config.GetID == nil {
		panic("stripecustomers/http: Config.GetID is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			doc, err := api.LoadDocument(r.Context(), config.Model, config.GetID(r))
			if err == nil && config.RequireField != "" {
				err = api.RequireField(doc, config.RequireField)
			}
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					defaultError(w, err)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDocument(r.Context(), doc)))
		})
	}
}

// HandlerFunc creates an HTTP middleware that loads the request's document (HandlerFunc version)
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

func defaultError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(api.StatusCode(err))
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: err.Error()})
}

// WithDocument adds doc to ctx
func WithDocument(ctx context.Context, doc *document.Document) context.Context {
	return context.WithValue(ctx, contextKey{}, doc)
}

// DocumentFromContext returns the document loaded by Middleware
func DocumentFromContext(ctx context.Context) (*document.Document, bool) {
	doc, ok := ctx.Value(contextKey{}).(*document.Document)
	return doc, ok && doc != nil
}

// Common extractors for convenience

// FromPathValue returns an IDExtractor that reads a net/http path wildcard
func FromPathValue(name string) IDExtractor {
	return func(r *http.Request) string {
		return r.PathValue(name)
	}
}

// FromHeader returns an IDExtractor that gets the ID from a header
func FromHeader(headerName string) IDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromQuery returns an IDExtractor that gets the ID from a query parameter
func FromQuery(name string) IDExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(name)
	}
}
