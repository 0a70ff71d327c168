// internal/relay/builder.go
package relay

import (
	"context"
	"encoding/base64"
	"errors"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
	"github.com/rovshanmuradov/solana-checkout/internal/logger"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
)

// ErrNoTransaction is returned instead of passing an empty payload through.
var ErrNoTransaction = errors.New("no transaction returned")

// Envelope is a serialized, unsigned or partially signed transaction.
type Envelope struct {
	Raw      []byte
	SwapInfo SwapInfo
}

func (e *Envelope) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Raw)
}

// DecodeEnvelope decodes a base64 transaction payload.
func DecodeEnvelope(encoded string, info SwapInfo) (*Envelope, error) {
	if encoded == "" {
		return nil, ErrNoTransaction
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoTransaction
	}
	return &Envelope{Raw: raw, SwapInfo: info}, nil
}

// Builder turns a swap intent into a signable transaction.
type Builder interface {
	Build(ctx context.Context, intent SwapIntent) (*Envelope, error)
}

// AggregatorBuilder quotes and builds the swap against the aggregator.
type AggregatorBuilder struct {
	client      *jupiter.Client
	policy      jupiter.SwapPolicy
	slippageBps int
	logger      *zap.Logger
}

func NewAggregatorBuilder(client *jupiter.Client, policy jupiter.SwapPolicy, slippageBps int, logger *zap.Logger) *AggregatorBuilder {
	return &AggregatorBuilder{
		client:      client,
		policy:      policy,
		slippageBps: slippageBps,
		logger:      logger.Named("builder"),
	}
}

func (b *AggregatorBuilder) Build(ctx context.Context, intent SwapIntent) (*Envelope, error) {
	const op = "create-transaction"
	defer logger.TrackPerformance(b.logger, op)()

	if err := intent.Validate(); err != nil {
		return nil, err
	}

	jq, err := b.client.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   intent.InputMint,
		OutputMint:  intent.OutputMint,
		Amount:      intent.Amount,
		SlippageBps: b.slippageBps,
	})
	if err != nil {
		return nil, apperr.Upstream(op, "Failed to fetch quote", err)
	}
	q, err := quote.Normalize(jq)
	if err != nil {
		return nil, apperr.Upstream(op, "Invalid quote from aggregator", err)
	}

	resp, err := b.client.Swap(ctx, jupiter.SwapRequest{
		Quote:                   jq,
		UserPublicKey:           intent.Sender,
		DestinationTokenAccount: intent.MerchantTokenAccount,
		Policy:                  b.policy,
	})
	if err != nil {
		if errors.Is(err, jupiter.ErrEmptySwapTransaction) {
			return nil, apperr.Upstream(op, "No transaction returned", ErrNoTransaction)
		}
		return nil, apperr.Upstream(op, "Failed to build transaction", err)
	}

	env, err := DecodeEnvelope(resp.SwapTransaction, SwapInfo{
		InputAmount:          Amount(intent.Amount),
		ExpectedOutputAmount: Amount(q.OutAmount),
		Fee:                  Amount(q.Fee),
	})
	if err != nil {
		return nil, apperr.Upstream(op, "No transaction returned", err)
	}

	b.logger.Info("Swap transaction built",
		zap.String("sender", intent.Sender.String()),
		zap.String("destination", intent.MerchantTokenAccount.String()),
		zap.Uint64("amount", intent.Amount),
		zap.Uint64("expected_out", q.OutAmount),
		zap.Int("size", len(env.Raw)))
	return env, nil
}
