package api

import "errors"

var (
	// ErrMissingID is returned when a request carries no document ID
	ErrMissingID = errors.New("document ID not found")

	// ErrInvalidID is returned when a document ID is not a 24 character hex string
	ErrInvalidID = errors.New("invalid document ID format")

	// ErrProtectedField is returned when a create body sets a server-managed
	// field such as the Stripe customer ID
	ErrProtectedField = errors.New("field cannot be set by clients")

	// ErrMissingField is returned by RequireField when a loaded document has
	// no value for the required field
	ErrMissingField = errors.New("document has no value for required field")
)
