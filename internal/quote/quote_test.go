package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
)

const solQuote = `{
	"inputMint": "So11111111111111111111111111111111111111112",
	"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"inAmount": "1000000000",
	"outAmount": "150000000",
	"slippageBps": 50,
	"routePlan": [{"swapInfo": {"feeAmount": "25000"}, "percent": 100}]
}`

func TestNormalizeAndDisplay(t *testing.T) {
	jq, err := jupiter.ParseQuote([]byte(solQuote))
	require.NoError(t, err)

	q, err := Normalize(jq)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), q.InAmount)
	assert.Equal(t, uint64(150_000_000), q.OutAmount)
	assert.True(t, q.HasFee)

	d := DisplayFor(q, token.SOL, token.USDC)
	assert.True(t, d.Available)
	assert.Equal(t, "150", d.Output)
	assert.Equal(t, "1 SOL ~ 150 USDC", d.Rate)
	assert.Equal(t, "0.025", d.Fee)
}

func TestNormalizeRejectsIncompleteQuotes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing out", `{"inAmount":"10"}`},
		{"missing in", `{"outAmount":"10"}`},
		{"zero out", `{"inAmount":"10","outAmount":"0"}`},
		{"not a number", `{"inAmount":"ten","outAmount":"10"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jq, err := jupiter.ParseQuote([]byte(tt.body))
			require.NoError(t, err)
			_, err = Normalize(jq)
			assert.ErrorIs(t, err, ErrInvalidQuote)
		})
	}
}

func TestDisplayWithoutFee(t *testing.T) {
	d := DisplayFor(&Quote{InAmount: 100_000_000, OutAmount: 3_000_000_000}, token.ETH, token.USDC)
	assert.Equal(t, "3000", d.Output)
	assert.Equal(t, "1 ETH ~ 3000 USDC", d.Rate)
	assert.Equal(t, Unavailable, d.Fee)
}

func TestUnavailableDisplay(t *testing.T) {
	d := DisplayFor(nil, token.SOL, token.USDC)
	assert.False(t, d.Available)
	assert.Equal(t, Unavailable, d.Output)
	assert.Equal(t, Unavailable, d.Rate)
	assert.Equal(t, Unavailable, d.Fee)
}
