package customers

import (
	"context"
	"time"
)

// Customer is the external customer record returned by a Creator
type Customer struct {
	ID          string
	Email       string
	Description string
	Metadata    map[string]string
	Created     time.Time
	LiveMode    bool
}

// Creator creates customers in the payment service
type Creator interface {
	// CreateCustomer sends payload and returns the created customer.
	// Implementations must not retry.
	CreateCustomer(ctx context.Context, payload *Payload) (*Customer, error)
}

// CreatorFunc adapts a function to the Creator interface
type CreatorFunc func(ctx context.Context, payload *Payload) (*Customer, error)

// CreateCustomer calls f
func (f CreatorFunc) CreateCustomer(ctx context.Context, payload *Payload) (*Customer, error) {
	return f(ctx, payload)
}
