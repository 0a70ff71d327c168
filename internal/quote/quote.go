// internal/quote/quote.go
package quote

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/solana-checkout/internal/jupiter"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
)

// Unavailable is shown in place of every derived value when no valid quote exists.
const Unavailable = "unavailable"

// ErrInvalidQuote means the payload lacked a usable inAmount or outAmount.
var ErrInvalidQuote = errors.New("invalid quote payload")

// Request asks for the conversion of Amount base units of InputMint.
type Request struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Amount     uint64
}

// Source fetches quotes. Implementations must honour ctx cancellation.
type Source interface {
	Quote(ctx context.Context, req Request) (*Quote, error)
}

// Quote is the normalized aggregator answer. Amounts are base units.
type Quote struct {
	InAmount  uint64
	OutAmount uint64
	Fee       uint64
	HasFee    bool
	// Route keeps the aggregator quote for building the swap from it.
	Route *jupiter.Quote
}

// Normalize extracts the amounts used for display from an aggregator quote.
func Normalize(q *jupiter.Quote) (*Quote, error) {
	if q == nil {
		return nil, ErrInvalidQuote
	}
	in, err := parseAmount(q.InAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: inAmount: %v", ErrInvalidQuote, err)
	}
	out, err := parseAmount(q.OutAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: outAmount: %v", ErrInvalidQuote, err)
	}
	n := &Quote{InAmount: in, OutAmount: out, Route: q}
	if raw, ok := q.FeeAmount(); ok {
		if fee, err := strconv.ParseUint(raw, 10, 64); err == nil {
			n.Fee = fee
			n.HasFee = true
		}
	}
	return n, nil
}

func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("missing")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, errors.New("zero")
	}
	return v, nil
}

// Display holds the values rendered next to the amount fields.
type Display struct {
	Available    bool
	OutputAmount decimal.Decimal
	Output       string
	Rate         string
	Fee          string
}

// UnavailableDisplay is the sentinel display used after a failed fetch.
func UnavailableDisplay() Display {
	return Display{Output: Unavailable, Rate: Unavailable, Fee: Unavailable}
}

// DisplayFor derives output, rate and fee text. Destination decimals come
// from dest, so the same code renders any settlement asset.
func DisplayFor(q *Quote, source, dest token.Token) Display {
	if q == nil || q.InAmount == 0 {
		return UnavailableDisplay()
	}
	out := token.FromRaw(q.OutAmount, dest.Decimals)
	in := token.FromRaw(q.InAmount, source.Decimals)
	rate := out.Div(in).Round(int32(dest.Decimals))

	d := Display{
		Available:    true,
		OutputAmount: out,
		Output:       out.String(),
		Rate:         fmt.Sprintf("1 %s ~ %s %s", source.Symbol, rate.String(), dest.Symbol),
		Fee:          Unavailable,
	}
	if q.HasFee {
		d.Fee = token.FromRaw(q.Fee, dest.Decimals).String()
	}
	return d
}
