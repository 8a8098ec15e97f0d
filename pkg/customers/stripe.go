package customers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"
)

const (
	defaultHTTPTimeout = 10 * time.Second

	endpointCustomers  = "/v1/customers"
	opCreateCustomer   = "create_customer"
	apiStatusSuccess   = "success"
	apiStatusTransport = "error"
)

// StripeConfig holds configuration for the Stripe customer creator
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_live_... or sk_test_...)
	APIKey string

	// BaseURL overrides the API endpoint, e.g. a stripe-mock instance
	BaseURL string

	// HTTPClient is the HTTP client used for API calls. Default: 10s timeout
	HTTPClient *http.Client

	Metrics Metrics
}

// StripeCreator creates customers through the Stripe API.
// It is safe for concurrent use.
type StripeCreator struct {
	client  *stripe.Client
	metrics Metrics
}

// NewStripeCreator builds the Stripe client once.
// Network retries are disabled; a failed create fails the save.
func NewStripeCreator(config StripeConfig) (*StripeCreator, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, &ConfigurationError{Option: "APIKey", Reason: "Stripe API key must be provided"}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/"); base != "" {
		backendConfig.URL = stripe.String(base)
	}

	backends := stripe.NewBackendsWithConfig(backendConfig)
	return &StripeCreator{
		client:  stripe.NewClient(apiKey, stripe.WithBackends(backends)),
		metrics: metrics,
	}, nil
}

// CreateCustomer implements Creator
func (c *StripeCreator) CreateCustomer(ctx context.Context, payload *Payload) (*Customer, error) {
	startTime := time.Now()

	params := &stripe.CustomerCreateParams{}
	if payload.Email != "" {
		params.Email = stripe.String(payload.Email)
	}
	if payload.Description != "" {
		params.Description = stripe.String(payload.Description)
	}
	for _, key := range payload.Metadata.Keys() {
		value, _ := payload.Metadata.Get(key)
		params.AddMetadata(key, value)
	}

	cust, err := c.client.V1Customers.Create(ctx, params)
	if err != nil {
		extErr := &ExternalServiceError{Operation: opCreateCustomer, Err: err}
		status := apiStatusTransport

		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			extErr.StatusCode = stripeErr.HTTPStatusCode
			extErr.Code = string(stripeErr.Code)
			extErr.RequestID = stripeErr.RequestID
			if stripeErr.HTTPStatusCode != 0 {
				status = strconv.Itoa(stripeErr.HTTPStatusCode)
			}
		}

		c.metrics.RecordAPICall(endpointCustomers, status)
		c.metrics.RecordAPICallDuration(endpointCustomers, time.Since(startTime))
		return nil, extErr
	}

	c.metrics.RecordAPICall(endpointCustomers, apiStatusSuccess)
	c.metrics.RecordAPICallDuration(endpointCustomers, time.Since(startTime))

	if cust.ID == "" {
		return nil, &ExternalServiceError{Operation: opCreateCustomer, Err: ErrEmptyCustomerID}
	}

	out := &Customer{
		ID:          cust.ID,
		Email:       cust.Email,
		Description: cust.Description,
		Metadata:    cust.Metadata,
		LiveMode:    cust.Livemode,
	}
	if cust.Created > 0 {
		out.Created = time.Unix(cust.Created, 0).UTC()
	}
	return out, nil
}
