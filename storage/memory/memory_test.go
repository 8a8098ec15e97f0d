package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

var (
	_ document.Store   = (*Storage)(nil)
	_ document.Indexer = (*Storage)(nil)
	_ document.Deleter = (*Storage)(nil)
)

func TestStorage_InsertGetReplace(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "customers", "a", map[string]any{"email": "ada@example.com"}))

	err := s.Insert(ctx, "customers", "a", map[string]any{})
	assert.True(t, errors.Is(err, document.ErrDuplicateKey))

	got, err := s.Get(ctx, "customers", "a")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got["email"])

	require.NoError(t, s.Replace(ctx, "customers", "a", map[string]any{"email": "lovelace@example.com"}))
	got, err = s.Get(ctx, "customers", "a")
	require.NoError(t, err)
	assert.Equal(t, "lovelace@example.com", got["email"])

	err = s.Replace(ctx, "customers", "missing", map[string]any{})
	assert.True(t, errors.Is(err, document.ErrNotFound))

	_, err = s.Get(ctx, "other", "a")
	assert.True(t, errors.Is(err, document.ErrNotFound))
}

func TestStorage_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	data := map[string]any{"profile": map[string]any{"name": "Ada"}}

	require.NoError(t, s.Insert(ctx, "customers", "a", data))
	data["profile"].(map[string]any)["name"] = "changed"

	got, err := s.Get(ctx, "customers", "a")
	require.NoError(t, err)
	got["profile"].(map[string]any)["name"] = "changed again"

	again, err := s.Get(ctx, "customers", "a")
	require.NoError(t, err)
	assert.Equal(t, "Ada", again["profile"].(map[string]any)["name"])
}

func TestStorage_SparseUniqueIndex(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.EnsureUniqueIndex(ctx, "customers", "stripe_customer_id"))
	require.NoError(t, s.EnsureUniqueIndex(ctx, "customers", "stripe_customer_id"))

	// documents without a value never collide
	require.NoError(t, s.Insert(ctx, "customers", "a", map[string]any{}))
	require.NoError(t, s.Insert(ctx, "customers", "b", map[string]any{"stripe_customer_id": ""}))
	require.NoError(t, s.Insert(ctx, "customers", "c", map[string]any{"stripe_customer_id": nil}))

	require.NoError(t, s.Insert(ctx, "customers", "d", map[string]any{"stripe_customer_id": "cus_1"}))
	err := s.Insert(ctx, "customers", "e", map[string]any{"stripe_customer_id": "cus_1"})
	assert.True(t, errors.Is(err, document.ErrDuplicateKey))

	err = s.Replace(ctx, "customers", "a", map[string]any{"stripe_customer_id": "cus_1"})
	assert.True(t, errors.Is(err, document.ErrDuplicateKey))

	// the owner can rewrite its own value, which frees the old one
	require.NoError(t, s.Replace(ctx, "customers", "d", map[string]any{"stripe_customer_id": "cus_2"}))
	require.NoError(t, s.Replace(ctx, "customers", "a", map[string]any{"stripe_customer_id": "cus_1"}))

	// other collections are independent
	require.NoError(t, s.Insert(ctx, "leads", "x", map[string]any{"stripe_customer_id": "cus_1"}))

	// only strings are indexed, as in every other store
	require.NoError(t, s.Insert(ctx, "customers", "f", map[string]any{"stripe_customer_id": 5}))
	require.NoError(t, s.Insert(ctx, "customers", "g", map[string]any{"stripe_customer_id": 5}))
	require.NoError(t, s.Insert(ctx, "customers", "h", map[string]any{"stripe_customer_id": "5"}))
}

func TestStorage_DeleteReleasesUniqueValues(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.EnsureUniqueIndex(ctx, "customers", "email"))
	require.NoError(t, s.Insert(ctx, "customers", "a", map[string]any{"email": "ada@example.com"}))

	require.NoError(t, s.Delete(ctx, "customers", "a"))
	require.NoError(t, s.Delete(ctx, "customers", "a"), "missing documents are not an error")

	_, err := s.Get(ctx, "customers", "a")
	assert.True(t, errors.Is(err, document.ErrNotFound))
	assert.NoError(t, s.Insert(ctx, "customers", "b", map[string]any{"email": "ada@example.com"}))
}

func TestStorage_EnsureUniqueIndexOverExistingData(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "customers", "a", map[string]any{"billing": map[string]any{"id": "cus_1"}}))
	require.NoError(t, s.Insert(ctx, "customers", "b", map[string]any{"billing": map[string]any{"id": "cus_1"}}))

	err := s.EnsureUniqueIndex(ctx, "customers", "billing.id")
	assert.True(t, errors.Is(err, document.ErrDuplicateKey))

	err = s.EnsureUniqueIndex(ctx, "customers", "billing..id")
	assert.True(t, errors.Is(err, document.ErrInvalidPath))
}

func TestStorage_ConcurrentInserts(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.EnsureUniqueIndex(ctx, "customers", "email"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := s.Insert(ctx, "customers", id, map[string]any{"email": "same@example.com"}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, s.Len("customers"))
}
