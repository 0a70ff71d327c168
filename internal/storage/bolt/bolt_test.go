package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-checkout/internal/storage"
	"github.com/rovshanmuradov/solana-checkout/internal/storage/models"
)

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "widget.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "wallet_state", []byte(`{"connectedWalletName":"Keypair"}`), 0))
	require.NoError(t, s.Set(ctx, "gone", []byte("x"), 0))
	require.NoError(t, s.Delete(ctx, "gone"))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "wallet_state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"connectedWalletName":"Keypair"}`, string(got))

	_, err = reopened.Get(ctx, "gone")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreExpiry(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "widget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Second))
	_, err = s.Get(ctx, "k")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerOverBolt(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "widget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ledger := storage.NewKVLedger(s)
	ctx := context.Background()

	require.NoError(t, ledger.SaveTransaction(ctx, &models.Transaction{Signature: "sig", Status: models.StatusConfirmed}))
	tx, err := ledger.GetTransaction(ctx, "sig")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, tx.Status)
}
