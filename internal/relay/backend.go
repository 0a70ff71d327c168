// internal/relay/backend.go
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
)

const defaultBackendTimeout = 15 * time.Second

// BackendClient talks to the relay backend. It is the widget's quote source
// and transaction builder.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

type BackendOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds each call except quotes, whose deadline comes from ctx.
	Timeout time.Duration
}

func NewBackendClient(opts BackendOptions, logger *zap.Logger) *BackendClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultBackendTimeout
	}
	return &BackendClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		logger:     logger.Named("backend"),
	}
}

// Quote implements quote.Source via get-quote.
func (c *BackendClient) Quote(ctx context.Context, req quote.Request) (*quote.Quote, error) {
	const op = "get-quote"
	var resp GetQuoteResponse
	err := c.post(ctx, op, GetQuoteRequest{
		InputMint:  req.InputMint.String(),
		OutputMint: req.OutputMint.String(),
		Amount:     Amount(req.Amount),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, apperr.Upstream(op, "quote service unavailable", errors.New(resp.Error))
	}
	jq, err := jupiter.ParseQuote(resp.QuoteData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", quote.ErrInvalidQuote, err)
	}
	return quote.Normalize(jq)
}

// SetAddresses registers the pair and returns the merchant settlement account.
func (c *BackendClient) SetAddresses(ctx context.Context, sender, merchant solana.PublicKey) (solana.PublicKey, error) {
	const op = "set-addresses"
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp SetAddressesResponse
	if err := c.post(ctx, op, SetAddressesRequest{
		SenderPubKey:   sender.String(),
		MerchantPubKey: merchant.String(),
	}, &resp); err != nil {
		return solana.PublicKey{}, err
	}
	if !resp.Success {
		return solana.PublicKey{}, apperr.Upstream(op, "Failed to register addresses", errors.New(resp.Error))
	}
	if resp.MerchantTokenAccount == "" {
		return SettlementAccount(merchant)
	}
	ata, err := solana.PublicKeyFromBase58(resp.MerchantTokenAccount)
	if err != nil {
		return solana.PublicKey{}, apperr.Upstream(op, "Failed to register addresses", err)
	}
	return ata, nil
}

// Build implements Builder via create-transaction.
func (c *BackendClient) Build(ctx context.Context, intent SwapIntent) (*Envelope, error) {
	const op = "create-transaction"
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp CreateTransactionResponse
	if err := c.post(ctx, op, CreateTransactionRequest{
		InputMint:         intent.InputMint.String(),
		OutputMint:        intent.OutputMint.String(),
		Amount:            Amount(intent.Amount),
		UserPublicKey:     intent.Sender.String(),
		MerchantPublicKey: intent.Merchant.String(),
	}, &resp); err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(resp.SerializedTransaction, resp.SwapInfo)
	if err != nil {
		return nil, apperr.Upstream(op, "Transaction data missing", err)
	}
	return env, nil
}

// ConfirmTransaction reports a submitted signature to the backend.
func (c *BackendClient) ConfirmTransaction(ctx context.Context, signature solana.Signature) (string, error) {
	const op = "confirm-transaction"
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp ConfirmTransactionResponse
	if err := c.post(ctx, op, ConfirmTransactionRequest{Signature: signature.String()}, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", apperr.Upstream(op, "Failed to confirm transaction", errors.New(resp.Error))
	}
	return resp.Message, nil
}

// post sends body to /{op}. Non-2xx answers become Validation errors for 400
// and Upstream errors otherwise.
func (c *BackendClient) post(ctx context.Context, op string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, "failed to encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream(op, "backend unavailable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperr.Upstream(op, "backend unavailable", err)
	}
	c.logger.Debug("Backend call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e ErrorResponse
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusBadRequest {
			return apperr.Validation(op, e.Error)
		}
		return apperr.Upstream(op, op+" failed", fmt.Errorf("status %d: %s", resp.StatusCode, e.Error))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Upstream(op, op+" failed", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

var (
	_ quote.Source = (*BackendClient)(nil)
	_ Builder      = (*BackendClient)(nil)
)
