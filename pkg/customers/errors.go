package customers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured is wrapped by every ConfigurationError
	ErrNotConfigured = errors.New("stripe customers not configured")

	// ErrEmptyCustomerID is returned when the remote service reports success without an ID
	ErrEmptyCustomerID = errors.New("customer created without an id")

	// ErrUnsupportedValue is returned when a field value cannot be rendered as a metadata string
	ErrUnsupportedValue = errors.New("value cannot be stored as customer metadata")
)

// ConfigurationError reports invalid registration options.
// It is returned before the schema is touched.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("stripe customers: invalid %s: %s", e.Option, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrNotConfigured
}

// ExternalServiceError reports a failed call to the payment service.
// It wraps the client error, so errors.Is and errors.As see through it.
type ExternalServiceError struct {
	// Operation is the remote operation, e.g. "create_customer"
	Operation string

	// StatusCode is the HTTP status returned by the service, 0 for transport failures
	StatusCode int

	// Code is the service error code, e.g. "email_invalid"
	Code string

	// RequestID identifies the failed request in the service dashboard
	RequestID string

	Err error
}

func (e *ExternalServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stripe: failed to %s", strings.ReplaceAll(e.Operation, "_", " "))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d", e.StatusCode)
		if e.Code != "" {
			fmt.Fprintf(&b, ", code %s", e.Code)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// FieldError reports a document field that could not be read into the payload
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("stripe customers: field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
