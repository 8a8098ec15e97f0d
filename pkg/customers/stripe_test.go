package customers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStripe records customer create requests and answers with a canned response
type fakeStripe struct {
	mu       sync.Mutex
	requests []url.Values
	status   int
	body     string
}

func newFakeStripe(t *testing.T, status int, body string) (*fakeStripe, *httptest.Server) {
	t.Helper()
	f := &fakeStripe{status: status, body: body}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/v1/customers" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, r.PostForm)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Request-Id", "req_test")
	w.WriteHeader(f.status)
	fmt.Fprint(w, f.body)
}

func (f *fakeStripe) calls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.requests...)
}

type recordingMetrics struct {
	NoopMetrics
	mu       sync.Mutex
	apiCalls []string
	syncs    []string
}

func (m *recordingMetrics) RecordAPICall(endpoint, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiCalls = append(m.apiCalls, endpoint+" "+status)
}

func (m *recordingMetrics) RecordSync(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs = append(m.syncs, state)
}

func TestNewStripeCreator_RequiresAPIKey(t *testing.T) {
	_, err := NewStripeCreator(StripeConfig{APIKey: " "})

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "APIKey", cfgErr.Option)
}

func TestStripeCreator_CreateCustomer(t *testing.T) {
	fake, srv := newFakeStripe(t, http.StatusOK,
		`{"id":"cus_123","object":"customer","email":"ada@x.com","description":"Ada Lovelace","created":1709294400,"livemode":false}`)
	metrics := &recordingMetrics{}

	creator, err := NewStripeCreator(StripeConfig{
		APIKey:     "sk_test_123",
		BaseURL:    srv.URL + "/",
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Metrics:    metrics,
	})
	require.NoError(t, err)

	p := &Payload{Email: "ada@x.com", Description: "Ada Lovelace"}
	p.Metadata.Set("firstName", "Ada")
	p.Metadata.Set("lastName", "Lovelace")

	cust, err := creator.CreateCustomer(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", cust.ID)
	assert.Equal(t, "ada@x.com", cust.Email)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), cust.Created)

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ada@x.com", calls[0].Get("email"))
	assert.Equal(t, "Ada Lovelace", calls[0].Get("description"))
	assert.Equal(t, "Ada", calls[0].Get("metadata[firstName]"))
	assert.Equal(t, "Lovelace", calls[0].Get("metadata[lastName]"))

	assert.Equal(t, []string{"/v1/customers success"}, metrics.apiCalls)
}

func TestStripeCreator_OmitsEmptyFields(t *testing.T) {
	fake, srv := newFakeStripe(t, http.StatusOK, `{"id":"cus_empty","object":"customer"}`)
	creator, err := NewStripeCreator(StripeConfig{APIKey: "sk_test_123", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = creator.CreateCustomer(context.Background(), &Payload{})
	require.NoError(t, err)

	calls := fake.calls()
	require.Len(t, calls, 1)
	_, hasEmail := calls[0]["email"]
	_, hasDescription := calls[0]["description"]
	assert.False(t, hasEmail)
	assert.False(t, hasDescription)
}

func TestStripeCreator_APIError(t *testing.T) {
	fake, srv := newFakeStripe(t, http.StatusBadRequest,
		`{"error":{"type":"invalid_request_error","code":"email_invalid","message":"Invalid email address: nope"}}`)
	metrics := &recordingMetrics{}
	creator, err := NewStripeCreator(StripeConfig{APIKey: "sk_test_123", BaseURL: srv.URL, Metrics: metrics})
	require.NoError(t, err)

	cust, err := creator.CreateCustomer(context.Background(), &Payload{Email: "nope"})
	assert.Nil(t, cust)

	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "create_customer", extErr.Operation)
	assert.Equal(t, http.StatusBadRequest, extErr.StatusCode)
	assert.Equal(t, "email_invalid", extErr.Code)
	assert.Equal(t, "req_test", extErr.RequestID)

	// no retries
	assert.Len(t, fake.calls(), 1)
	assert.Equal(t, []string{"/v1/customers 400"}, metrics.apiCalls)
}

func TestStripeCreator_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	metrics := &recordingMetrics{}
	creator, err := NewStripeCreator(StripeConfig{APIKey: "sk_test_123", BaseURL: base, Metrics: metrics})
	require.NoError(t, err)

	_, err = creator.CreateCustomer(context.Background(), &Payload{Email: "ada@x.com"})

	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, 0, extErr.StatusCode)
	assert.Equal(t, []string{"/v1/customers error"}, metrics.apiCalls)
}

func TestStripeCreator_EmptyID(t *testing.T) {
	_, srv := newFakeStripe(t, http.StatusOK, `{"object":"customer"}`)
	creator, err := NewStripeCreator(StripeConfig{APIKey: "sk_test_123", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = creator.CreateCustomer(context.Background(), &Payload{})
	assert.True(t, errors.Is(err, ErrEmptyCustomerID))
}

func TestExternalServiceError_Message(t *testing.T) {
	cause := errors.New("declined")
	err := &ExternalServiceError{Operation: "create_customer", StatusCode: 402, Code: "card_declined", Err: cause}

	assert.Equal(t, "stripe: failed to create customer (status 402, code card_declined): declined", err.Error())
	assert.True(t, errors.Is(err, cause))
}
