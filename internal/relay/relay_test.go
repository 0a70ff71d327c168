package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/storage"
	"github.com/rovshanmuradov/solana-checkout/internal/storage/memory"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
)

var (
	merchantKey = solana.MustPublicKeyFromBase58("8m4JS8gdXzw7xhG1ExKxoKL2MZ9EyKXwWqNqRJsYxmXb")
	senderKey   = solana.MustPublicKeyFromBase58("3KLB9Tqsj1x4yvJkwxVUhRucYEvKGRxvgqkGHsVPshCq")
)

const aggregatorQuote = `{"inputMint":"So11111111111111111111111111111111111111112","outputMint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","inAmount":"1000000000","outAmount":"148210000","routePlan":[{"swapInfo":{"feeAmount":"120000"},"percent":100}]}`

func TestNewSwapIntentDerivesSettlementAccount(t *testing.T) {
	intent, err := NewSwapIntent(token.SOL.Mint, 1_000_000_000, senderKey, merchantKey)
	require.NoError(t, err)

	want, _, err := solana.FindAssociatedTokenAddress(merchantKey, token.USDC.Mint)
	require.NoError(t, err)
	assert.Equal(t, want, intent.MerchantTokenAccount)
	assert.NotEqual(t, merchantKey, intent.MerchantTokenAccount)
	assert.Equal(t, token.USDC.Mint, intent.OutputMint)
	assert.NoError(t, intent.Validate())
}

func TestSwapIntentMissingParameters(t *testing.T) {
	cases := map[string]func() (SwapIntent, error){
		"no amount":   func() (SwapIntent, error) { return NewSwapIntent(token.SOL.Mint, 0, senderKey, merchantKey) },
		"no sender":   func() (SwapIntent, error) { return NewSwapIntent(token.SOL.Mint, 1, solana.PublicKey{}, merchantKey) },
		"no merchant": func() (SwapIntent, error) { return NewSwapIntent(token.SOL.Mint, 1, senderKey, solana.PublicKey{}) },
		"no input":    func() (SwapIntent, error) { return NewSwapIntent(solana.PublicKey{}, 1, senderKey, merchantKey) },
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := build()
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, "Missing parameters", apperr.UserMessage(err))
		})
	}

	intent, err := NewSwapIntent(token.SOL.Mint, 1, senderKey, merchantKey)
	require.NoError(t, err)
	intent.MerchantTokenAccount = merchantKey
	assert.Error(t, intent.Validate())
}

func TestAmountJSON(t *testing.T) {
	var req GetQuoteRequest
	require.NoError(t, json.Unmarshal([]byte(`{"amount":1000000000}`), &req))
	assert.Equal(t, Amount(1_000_000_000), req.Amount)
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"42"}`), &req))
	assert.Equal(t, Amount(42), req.Amount)
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"1.5"}`), &req))

	out, err := json.Marshal(GetQuoteRequest{Amount: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"inputMint":"","outputMint":"","amount":7}`, string(out))
}

func newAggregator(t *testing.T, swapTx string) (*jupiter.Client, *map[string]interface{}) {
	var swapBody map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(aggregatorQuote))
	})
	mux.HandleFunc("/swap", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&swapBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"swapTransaction": swapTx})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return jupiter.NewClient(jupiter.Options{BaseURL: srv.URL, RetryInterval: time.Millisecond, MaxElapsed: time.Second}, zaptest.NewLogger(t)), &swapBody
}

func TestAggregatorBuilder(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	client, swapBody := newAggregator(t, base64.StdEncoding.EncodeToString(payload))
	b := NewAggregatorBuilder(client, jupiter.DefaultSwapPolicy(), 50, zaptest.NewLogger(t))

	intent, err := NewSwapIntent(token.SOL.Mint, 1_000_000_000, senderKey, merchantKey)
	require.NoError(t, err)
	env, err := b.Build(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, payload, env.Raw)
	assert.Equal(t, SwapInfo{InputAmount: 1_000_000_000, ExpectedOutputAmount: 148_210_000, Fee: 120_000}, env.SwapInfo)

	body := *swapBody
	assert.Equal(t, senderKey.String(), body["userPublicKey"])
	assert.Equal(t, intent.MerchantTokenAccount.String(), body["destinationTokenAccount"])
	assert.Equal(t, true, body["dynamicComputeUnitLimit"])
	assert.Equal(t, true, body["dynamicSlippage"])
	fee := body["prioritizationFeeLamports"].(map[string]interface{})["priorityLevelWithMaxLamports"].(map[string]interface{})
	assert.Equal(t, float64(1_000_000), fee["maxLamports"])
	assert.Equal(t, "high", fee["priorityLevel"])
}

func TestAggregatorBuilderEmptyTransaction(t *testing.T) {
	client, _ := newAggregator(t, "")
	b := NewAggregatorBuilder(client, jupiter.DefaultSwapPolicy(), 50, zaptest.NewLogger(t))
	intent, err := NewSwapIntent(token.SOL.Mint, 1_000_000_000, senderKey, merchantKey)
	require.NoError(t, err)

	_, err = b.Build(context.Background(), intent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoTransaction))
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func newBackend(t *testing.T, routes map[string]http.HandlerFunc) *BackendClient {
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewBackendClient(BackendOptions{BaseURL: srv.URL + "/api/", HTTPClient: srv.Client(), Timeout: time.Second}, zaptest.NewLogger(t))
}

func TestBackendQuote(t *testing.T) {
	var got GetQuoteRequest
	c := newBackend(t, map[string]http.HandlerFunc{
		"/api/get-quote": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"success":true,"quoteData":` + aggregatorQuote + `}`))
		},
	})

	q, err := c.Quote(context.Background(), quote.Request{InputMint: token.SOL.Mint, OutputMint: token.USDC.Mint, Amount: 1_000_000_000})
	require.NoError(t, err)
	assert.Equal(t, uint64(148_210_000), q.OutAmount)
	assert.Equal(t, GetQuoteRequest{InputMint: token.SOL.Mint.String(), OutputMint: token.USDC.Mint.String(), Amount: 1_000_000_000}, got)
}

func TestBackendQuoteFailures(t *testing.T) {
	c := newBackend(t, map[string]http.HandlerFunc{
		"/api/get-quote": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"quote service unavailable"}`))
		},
	})
	_, err := c.Quote(context.Background(), quote.Request{InputMint: token.SOL.Mint, OutputMint: token.USDC.Mint, Amount: 1})
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	c = newBackend(t, map[string]http.HandlerFunc{
		"/api/get-quote": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"quoteData":{"inAmount":"5"}}`))
		},
	})
	_, err = c.Quote(context.Background(), quote.Request{InputMint: token.SOL.Mint, OutputMint: token.USDC.Mint, Amount: 5})
	assert.ErrorIs(t, err, quote.ErrInvalidQuote)
}

func TestBackendCreateTransactionAndConfirm(t *testing.T) {
	var created CreateTransactionRequest
	var confirmed ConfirmTransactionRequest
	c := newBackend(t, map[string]http.HandlerFunc{
		"/api/set-addresses": func(w http.ResponseWriter, r *http.Request) {
			var req SetAddressesRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, senderKey.String(), req.SenderPubKey)
			_, _ = w.Write([]byte(`{"success":true}`))
		},
		"/api/create-transaction": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_ = json.NewEncoder(w).Encode(CreateTransactionResponse{
				SerializedTransaction: base64.StdEncoding.EncodeToString([]byte{9, 9}),
				SwapInfo:              SwapInfo{InputAmount: 10, ExpectedOutputAmount: 20, Fee: 1},
			})
		},
		"/api/confirm-transaction": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&confirmed))
			_, _ = w.Write([]byte(`{"success":true,"message":"Transaction recorded successfully"}`))
		},
	})
	ctx := context.Background()

	ata, err := c.SetAddresses(ctx, senderKey, merchantKey)
	require.NoError(t, err)
	want, err := SettlementAccount(merchantKey)
	require.NoError(t, err)
	assert.Equal(t, want, ata)

	intent, err := NewSwapIntent(token.SOL.Mint, 10, senderKey, merchantKey)
	require.NoError(t, err)
	env, err := c.Build(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, env.Raw)
	assert.Equal(t, Amount(20), env.SwapInfo.ExpectedOutputAmount)
	assert.Equal(t, merchantKey.String(), created.MerchantPublicKey)
	assert.Equal(t, token.USDC.Mint.String(), created.OutputMint)

	sig := solana.Signature{1, 2, 3}
	msg, err := c.ConfirmTransaction(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, "Transaction recorded successfully", msg)
	assert.Equal(t, sig.String(), confirmed.Signature)
}

func TestBackendCreateTransactionMissingPayload(t *testing.T) {
	c := newBackend(t, map[string]http.HandlerFunc{
		"/api/create-transaction": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"swapInfo":{}}`))
		},
	})
	intent, err := NewSwapIntent(token.SOL.Mint, 10, senderKey, merchantKey)
	require.NoError(t, err)
	_, err = c.Build(context.Background(), intent)
	assert.ErrorIs(t, err, ErrNoTransaction)
}

func TestBackendValidationError(t *testing.T) {
	c := newBackend(t, map[string]http.HandlerFunc{
		"/api/set-addresses": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Missing senderPubKey or merchantPubKey"}`))
		},
	})
	_, err := c.SetAddresses(context.Background(), senderKey, merchantKey)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Missing senderPubKey or merchantPubKey", apperr.UserMessage(err))
}

func TestRegistry(t *testing.T) {
	kv := memory.New()
	r := NewRegistry(kv, time.Minute)
	ctx := context.Background()

	_, err := r.Lookup(ctx, senderKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	reg, err := r.Register(ctx, senderKey, merchantKey)
	require.NoError(t, err)
	want, err := SettlementAccount(merchantKey)
	require.NoError(t, err)
	assert.Equal(t, want.String(), reg.MerchantTokenAccount)

	got, err := r.Lookup(ctx, senderKey)
	require.NoError(t, err)
	assert.Equal(t, reg.Merchant, got.Merchant)
}
