package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// State is the outcome of one synchronization attempt.
// An attempt moves NotStarted -> Deciding -> Skipped, or
// NotStarted -> Deciding -> Creating -> Completed | Failed.
type State string

const (
	StateNotStarted State = "not_started"
	StateDeciding   State = "deciding"
	StateSkipped    State = "skipped"
	StateCreating   State = "creating"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Proceeds reports whether the save may continue after this state
func (s State) Proceeds() bool {
	return s == StateSkipped || s == StateCompleted
}

// Hook creates a Stripe customer for new documents.
// The configuration is read-only after construction and the creator is
// shared, so one Hook serves concurrent saves.
type Hook struct {
	opts    Options
	creator Creator
	logger  document.Logger
	metrics Metrics
}

// NewHook validates opts and builds the creator without touching a schema
func NewHook(opts Options) (*Hook, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.FirstNameField != "" && opts.LastNameField == "" ||
		opts.FirstNameField == "" && opts.LastNameField != "" {
		opts.Logger.Warn("only one name field configured, names will not be used",
			document.LogField{Key: "first_name_field", Value: opts.FirstNameField},
			document.LogField{Key: "last_name_field", Value: opts.LastNameField},
		)
	}

	creator := opts.Creator
	if creator == nil {
		sc, err := NewStripeCreator(StripeConfig{
			APIKey:     opts.APIKey,
			BaseURL:    opts.APIBaseURL,
			HTTPClient: opts.HTTPClient,
			Metrics:    opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		creator = sc
	}
	if opts.Breaker != nil {
		cfg := *opts.Breaker
		onStateChange := cfg.OnStateChange
		cfg.OnStateChange = func(state BreakerState) {
			opts.Logger.Warn("customer creation circuit breaker state changed",
				document.LogField{Key: "state", Value: string(state)},
			)
			if onStateChange != nil {
				onStateChange(state)
			}
		}
		creator = NewBreakerCreator(creator, cfg)
	}

	return &Hook{
		opts:    opts,
		creator: creator,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Register installs customer synchronization on schema.
// Options are validated before the schema is modified. The external ID
// field is declared as a unique trimmed string unless the schema already
// has it, so registering twice is harmless.
func Register(schema *document.Schema, opts Options) (*Hook, error) {
	if schema == nil {
		return nil, &ConfigurationError{Option: "schema", Reason: "schema is nil"}
	}

	h, err := NewHook(opts)
	if err != nil {
		return nil, err
	}

	field := h.opts.ExternalIDField
	if _, ok := schema.Path(field); !ok {
		err := schema.AddPath(field, document.Field{
			Type:   document.String,
			Unique: true,
			Trim:   true,
		})
		if err != nil && !errors.Is(err, document.ErrPathExists) {
			return nil, err
		}
	}

	if err := schema.Pre(h.opts.LifecycleEvent, h.Run); err != nil {
		return nil, err
	}
	return h, nil
}

// Plugin returns Register as a schema plugin
func Plugin(opts Options) document.Plugin {
	return func(s *document.Schema) error {
		_, err := Register(s, opts)
		return err
	}
}

// Options returns the resolved options
func (h *Hook) Options() Options {
	opts := h.opts
	opts.ExtraFields = append([]string(nil), h.opts.ExtraFields...)
	return opts
}

// Run is the document.Hook installed by Register
func (h *Hook) Run(ctx context.Context, doc *document.Document) error {
	_, err := h.Sync(ctx, doc)
	return err
}

// NeedsCustomer reports whether doc is new and has no external ID yet
func (h *Hook) NeedsCustomer(doc *document.Document) bool {
	if !doc.IsNew() {
		return false
	}
	v, ok := doc.Get(h.opts.ExternalIDField)
	if !ok || v == nil {
		return true
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) == ""
	}
	return isFalsy(v)
}

// Sync creates the customer when doc needs one and writes its ID back.
// Only the external ID field is ever modified. On failure the field stays
// unset and the error fails the save.
func (h *Hook) Sync(ctx context.Context, doc *document.Document) (State, error) {
	startTime := time.Now()
	state, err := h.sync(ctx, doc)

	h.metrics.RecordSync(string(state))
	h.metrics.RecordSyncDuration(string(state), time.Since(startTime))
	return state, err
}

func (h *Hook) sync(ctx context.Context, doc *document.Document) (State, error) {
	id := doc.ID().Hex()

	if !h.NeedsCustomer(doc) {
		h.logger.Debug("customer sync skipped",
			document.LogField{Key: "id", Value: id},
			document.LogField{Key: "is_new", Value: doc.IsNew()},
		)
		return StateSkipped, nil
	}

	payload, err := BuildPayload(doc, h.opts)
	if err != nil {
		h.logger.Error("failed to build customer payload",
			document.LogField{Key: "id", Value: id},
			document.LogField{Key: "error", Value: err},
		)
		return StateFailed, err
	}

	cust, err := h.creator.CreateCustomer(ctx, payload)
	if err == nil && (cust == nil || cust.ID == "") {
		err = ErrEmptyCustomerID
	}
	if err != nil {
		var extErr *ExternalServiceError
		if !errors.As(err, &extErr) {
			err = &ExternalServiceError{Operation: opCreateCustomer, Err: err}
		}
		h.logger.Error("failed to create customer",
			document.LogField{Key: "id", Value: id},
			document.LogField{Key: "error", Value: err},
		)
		return StateFailed, err
	}

	if err := doc.Set(h.opts.ExternalIDField, cust.ID); err != nil {
		h.logger.Error("failed to store customer id",
			document.LogField{Key: "id", Value: id},
			document.LogField{Key: "customer_id", Value: cust.ID},
			document.LogField{Key: "error", Value: err},
		)
		return StateFailed, &FieldError{Field: h.opts.ExternalIDField, Err: err}
	}

	h.logger.Info("customer created",
		document.LogField{Key: "id", Value: id},
		document.LogField{Key: "customer_id", Value: cust.ID},
	)
	return StateCompleted, nil
}
