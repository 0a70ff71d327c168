package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-checkout/internal/storage"
)

func TestStoreExpiry(t *testing.T) {
	s := New()
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Second))
	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	s.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestStoreCopiesValues(t *testing.T) {
	s := New()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	s := New()
	ctx := context.Background()
	type rec struct{ A int }

	require.NoError(t, storage.SetJSON(ctx, s, "r", rec{A: 3}, 0))
	var out rec
	require.NoError(t, storage.GetJSON(ctx, s, "r", &out))
	assert.Equal(t, 3, out.A)

	require.NoError(t, s.Set(ctx, "bad", []byte("{"), 0))
	assert.Error(t, storage.GetJSON(ctx, s, "bad", &out))
}
