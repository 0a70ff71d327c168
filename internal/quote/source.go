// internal/quote/source.go
package quote

import (
	"context"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
)

// AggregatorSource quotes directly against the aggregator.
type AggregatorSource struct {
	client      *jupiter.Client
	slippageBps int
}

func NewAggregatorSource(client *jupiter.Client, slippageBps int) *AggregatorSource {
	return &AggregatorSource{client: client, slippageBps: slippageBps}
}

func (s *AggregatorSource) Quote(ctx context.Context, req Request) (*Quote, error) {
	q, err := s.client.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      req.Amount,
		SlippageBps: s.slippageBps,
	})
	if err != nil {
		return nil, apperr.Upstream("get-quote", "quote service unavailable", err)
	}
	return Normalize(q)
}
