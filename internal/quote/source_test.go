package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
)

func newAggregatorSource(t *testing.T, h http.HandlerFunc) *AggregatorSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := jupiter.NewClient(jupiter.Options{
		BaseURL:       srv.URL,
		MaxElapsed:    200 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
	}, zaptest.NewLogger(t))
	return NewAggregatorSource(client, 75)
}

func TestAggregatorSourceNormalizes(t *testing.T) {
	src := newAggregatorSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "75", r.URL.Query().Get("slippageBps"))
		assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
		_, _ = w.Write([]byte(solQuote))
	})

	q, err := src.Quote(context.Background(), Request{
		InputMint:  token.SOL.Mint,
		OutputMint: token.USDC.Mint,
		Amount:     1_000_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), q.OutAmount)
	require.NotNil(t, q.Route)
	assert.JSONEq(t, solQuote, string(q.Route.Raw()))
}

func TestAggregatorSourceUpstreamError(t *testing.T) {
	src := newAggregatorSource(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no route", http.StatusBadRequest)
	})

	_, err := src.Quote(context.Background(), Request{
		InputMint:  token.SOL.Mint,
		OutputMint: token.USDC.Mint,
		Amount:     1,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, "quote service unavailable", apperr.UserMessage(err))
}
