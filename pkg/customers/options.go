package customers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// DefaultExternalIDField is the field that receives the Stripe customer ID
const DefaultExternalIDField = "stripe_customer_id"

// Options configures customer synchronization for one schema.
// Zero values are replaced by defaults at registration; explicit values win.
type Options struct {
	// APIKey is the Stripe secret key. Required.
	APIKey string

	// LifecycleEvent is the event the hook runs before. Default: document.EventSave
	LifecycleEvent document.Event

	// ExternalIDField receives the created customer ID. Default: "stripe_customer_id"
	ExternalIDField string

	// EmailField is copied into the customer email and default description
	EmailField string

	// FirstNameField and LastNameField build the description "<first> <last>".
	// Both must be set for either to be used.
	FirstNameField string
	LastNameField  string

	// ExtraFields are copied into metadata keyed by field path, in order.
	// "_id" is written as its hex string.
	ExtraFields []string

	// Creator replaces the Stripe client. APIKey is still required.
	Creator Creator

	// APIBaseURL overrides the Stripe API endpoint (stripe-mock, tests)
	APIBaseURL string

	// HTTPClient is used by the Stripe client. Default: 10s timeout
	HTTPClient *http.Client

	// Breaker wraps the creator in a circuit breaker when set
	Breaker *BreakerConfig

	Logger  document.Logger
	Metrics Metrics
}

// DefaultOptions returns options with every default filled in
func DefaultOptions() Options {
	return Options{
		LifecycleEvent:  document.EventSave,
		ExternalIDField: DefaultExternalIDField,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.LifecycleEvent == "" {
		o.LifecycleEvent = defaults.LifecycleEvent
	}
	if o.ExternalIDField == "" {
		o.ExternalIDField = defaults.ExternalIDField
	}
	if o.ExtraFields != nil {
		o.ExtraFields = append([]string(nil), o.ExtraFields...)
	}
	if o.Logger == nil {
		o.Logger = &document.NoopLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
	return o
}

// Validate checks the options after defaults are applied
func (o *Options) Validate() error {
	if strings.TrimSpace(o.APIKey) == "" {
		return &ConfigurationError{Option: "APIKey", Reason: "Stripe API key must be provided"}
	}
	if !o.LifecycleEvent.Valid() {
		return &ConfigurationError{
			Option: "LifecycleEvent",
			Reason: fmt.Sprintf("unsupported event %q", o.LifecycleEvent),
		}
	}
	if o.ExternalIDField == document.IDField {
		return &ConfigurationError{Option: "ExternalIDField", Reason: "cannot target the identity field"}
	}
	if err := checkPath("ExternalIDField", o.ExternalIDField); err != nil {
		return err
	}

	optional := []struct{ option, path string }{
		{"EmailField", o.EmailField},
		{"FirstNameField", o.FirstNameField},
		{"LastNameField", o.LastNameField},
	}
	for _, f := range optional {
		if f.path == "" {
			continue
		}
		if err := checkPath(f.option, f.path); err != nil {
			return err
		}
	}
	for i, path := range o.ExtraFields {
		if err := checkPath(fmt.Sprintf("ExtraFields[%d]", i), path); err != nil {
			return err
		}
	}
	return nil
}

func checkPath(option, path string) error {
	if err := document.ValidatePath(path); err != nil {
		return &ConfigurationError{Option: option, Reason: err.Error()}
	}
	return nil
}
