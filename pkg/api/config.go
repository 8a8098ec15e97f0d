package api

import (
	"fmt"
	"net/http"

	"github.com/mihaimyh/stripecustomers/pkg/customers"
	"github.com/mihaimyh/stripecustomers/pkg/document"
)

const defaultMaxBodyBytes = 1 << 20

// Config holds configuration for the document API handler
type Config struct {
	// Model is the document model served by the handler (required)
	Model *document.Model

	// GetID extracts the document ID from HTTP request (required for Get)
	GetID func(*http.Request) string

	// OnError handles errors (validation, upstream, internal, etc.)
	// If nil, uses default error handling
	OnError func(http.ResponseWriter, *http.Request, error)

	// MaxBodyBytes limits request bodies. Default: 1 MiB
	MaxBodyBytes int64

	// Logger records server side failures. Default: no-op
	Logger document.Logger

	// ProtectedFields may not appear in create bodies; requests that set
	// one are rejected with 400. Default: ["stripe_customer_id"].
	// Add the ExternalIDField of every customers.Hook on the model.
	ProtectedFields []string
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model == nil {
		return fmt.Errorf("model is required")
	}
	if c.GetID == nil {
		return fmt.Errorf("getID is required")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("maxBodyBytes must not be negative")
	}
	for _, field := range c.ProtectedFields {
		if err := document.ValidatePath(field); err != nil {
			return fmt.Errorf("protected field %q: %w", field, err)
		}
	}
	return nil
}

// NewHandler creates a new document API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	if config.Logger == nil {
		config.Logger = &document.NoopLogger{}
	}
	if len(config.ProtectedFields) == 0 {
		config.ProtectedFields = []string{customers.DefaultExternalIDField}
	} else {
		config.ProtectedFields = append([]string(nil), config.ProtectedFields...)
	}
	return &Handler{
		config: config,
	}, nil
}

// Helper functions for common ID extraction patterns

// FromPathValue returns a GetID function that reads a net/http path wildcard,
// e.g. FromPathValue("id") for the pattern "GET /customers/{id}"
func FromPathValue(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.PathValue(name)
	}
}

// FromHeader returns a GetID function that extracts the ID from a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns a GetID function that extracts the ID from request context
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if id, ok := r.Context().Value(key).(string); ok {
			return id
		}
		return ""
	}
}
