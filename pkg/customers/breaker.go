package customers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// BreakerState is the state of a BreakerCreator
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// ErrCircuitOpen is wrapped in the ExternalServiceError returned while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a BreakerCreator
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive service failures that
	// opens the breaker. Default: 5
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before requests are
	// let through again. Default: 30s
	ResetTimeout time.Duration

	// OnStateChange is called after every transition. Optional.
	OnStateChange func(state BreakerState)
}

// BreakerCreator stops calling the wrapped Creator after repeated service
// failures, so saves fail fast while Stripe is down.
// Client errors (4xx other than 429) do not count as failures.
type BreakerCreator struct {
	next Creator

	mu                  sync.RWMutex
	state               BreakerState
	failureThreshold    int
	resetTimeout        time.Duration
	consecutiveFailures int
	lastFailureTime     time.Time
	onStateChange       func(state BreakerState)
}

// NewBreakerCreator wraps next with a circuit breaker
func NewBreakerCreator(next Creator, config BreakerConfig) *BreakerCreator {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	return &BreakerCreator{
		next:             next,
		state:            BreakerClosed,
		failureThreshold: config.FailureThreshold,
		resetTimeout:     config.ResetTimeout,
		onStateChange:    config.OnStateChange,
	}
}

// State returns the current breaker state. An open breaker whose reset
// timeout has elapsed reports half-open.
func (b *BreakerCreator) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentState()
}

func (b *BreakerCreator) currentState() BreakerState {
	if b.state == BreakerOpen && time.Since(b.lastFailureTime) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// CreateCustomer implements Creator
func (b *BreakerCreator) CreateCustomer(ctx context.Context, payload *Payload) (*Customer, error) {
	if b.acquire() == BreakerOpen {
		return nil, &ExternalServiceError{Operation: opCreateCustomer, Err: ErrCircuitOpen}
	}

	customer, err := b.next.CreateCustomer(ctx, payload)
	switch {
	case err == nil:
		b.success()
	case tripsBreaker(err):
		b.failure()
	default:
		// The service answered; only the request was rejected
		b.success()
	}
	return customer, err
}

// acquire moves an expired open breaker to half-open and returns the state
func (b *BreakerCreator) acquire() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState()
	if state == BreakerHalfOpen {
		b.changeState(BreakerHalfOpen)
	}
	return state
}

func (b *BreakerCreator) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerClosed {
		b.changeState(BreakerClosed)
	}
	b.consecutiveFailures = 0
}

func (b *BreakerCreator) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailureTime = time.Now()

	if b.state == BreakerHalfOpen || b.consecutiveFailures >= b.failureThreshold {
		b.changeState(BreakerOpen)
	}
}

func (b *BreakerCreator) changeState(newState BreakerState) {
	if b.state != newState {
		b.state = newState
		if b.onStateChange != nil {
			b.onStateChange(newState)
		}
	}
}

func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var extErr *ExternalServiceError
	if !errors.As(err, &extErr) || extErr.StatusCode == 0 {
		return true
	}
	return extErr.StatusCode >= http.StatusInternalServerError ||
		extErr.StatusCode == http.StatusTooManyRequests
}
