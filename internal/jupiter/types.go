// internal/jupiter/types.go
package jupiter

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PriorityLevel is the aggregator's priority fee tier.
type PriorityLevel string

const (
	PriorityMedium   PriorityLevel = "medium"
	PriorityHigh     PriorityLevel = "high"
	PriorityVeryHigh PriorityLevel = "veryHigh"
)

// SwapPolicy is the fixed execution policy attached to every swap build.
type SwapPolicy struct {
	DynamicComputeUnitLimit bool
	DynamicSlippage         bool
	MaxPriorityLamports     uint64
	PriorityLevel           PriorityLevel
}

// DefaultSwapPolicy returns dynamic compute and slippage with a capped
// priority fee of 1_000_000 lamports at the high tier.
func DefaultSwapPolicy() SwapPolicy {
	return SwapPolicy{
		DynamicComputeUnitLimit: true,
		DynamicSlippage:         true,
		MaxPriorityLamports:     1_000_000,
		PriorityLevel:           PriorityHigh,
	}
}

// QuoteRequest identifies a conversion of Amount base units.
type QuoteRequest struct {
	InputMint   solana.PublicKey
	OutputMint  solana.PublicKey
	Amount      uint64
	SlippageBps int
}

type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// Quote is the aggregator's answer. The original JSON is kept because the
// swap endpoint expects it back unchanged.
type Quote struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot"`

	raw json.RawMessage
}

// ParseQuote decodes a quote and keeps its raw form.
func ParseQuote(data []byte) (*Quote, error) {
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("error unmarshalling quote: %w", err)
	}
	q.raw = append(json.RawMessage(nil), data...)
	return &q, nil
}

// Raw returns the quote exactly as received.
func (q *Quote) Raw() json.RawMessage {
	if q.raw != nil {
		return q.raw
	}
	data, _ := json.Marshal(q)
	return data
}

// FeeAmount returns the first route step fee, if any.
func (q *Quote) FeeAmount() (string, bool) {
	if len(q.RoutePlan) == 0 || q.RoutePlan[0].SwapInfo.FeeAmount == "" {
		return "", false
	}
	return q.RoutePlan[0].SwapInfo.FeeAmount, true
}

// SwapRequest asks the aggregator for a ready-to-sign transaction.
type SwapRequest struct {
	Quote                   *Quote
	UserPublicKey           solana.PublicKey
	DestinationTokenAccount solana.PublicKey
	Policy                  SwapPolicy
}

type priorityLevelWithMaxLamports struct {
	MaxLamports   uint64        `json:"maxLamports"`
	PriorityLevel PriorityLevel `json:"priorityLevel"`
}

type prioritizationFee struct {
	PriorityLevelWithMaxLamports priorityLevelWithMaxLamports `json:"priorityLevelWithMaxLamports"`
}

type swapRequestBody struct {
	QuoteResponse             json.RawMessage   `json:"quoteResponse"`
	UserPublicKey             string            `json:"userPublicKey"`
	DestinationTokenAccount   string            `json:"destinationTokenAccount"`
	DynamicComputeUnitLimit   bool              `json:"dynamicComputeUnitLimit"`
	DynamicSlippage           bool              `json:"dynamicSlippage"`
	PrioritizationFeeLamports prioritizationFee `json:"prioritizationFeeLamports"`
}

// SwapResponse carries the serialized, unsigned transaction.
type SwapResponse struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
}
