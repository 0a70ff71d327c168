// internal/token/catalog.go
package token

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Token describes a selectable source asset or the settlement asset.
type Token struct {
	Symbol   string
	Name     string
	Mint     solana.PublicKey
	Decimals uint8
}

var (
	SOL = Token{
		Symbol:   "SOL",
		Name:     "Solana",
		Mint:     solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		Decimals: 9,
	}
	USDC = Token{
		Symbol:   "USDC",
		Name:     "USD Coin",
		Mint:     solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Decimals: 6,
	}
	// Wormhole-bridged assets carry 8 decimals on Solana.
	ETH = Token{
		Symbol:   "ETH",
		Name:     "Ethereum",
		Mint:     solana.MustPublicKeyFromBase58("7vfCXTUXx5WJV5JADk17DVJ4ksgau7utNKj4b963voxs"),
		Decimals: 8,
	}
	BTC = Token{
		Symbol:   "BTC",
		Name:     "Bitcoin",
		Mint:     solana.MustPublicKeyFromBase58("3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh"),
		Decimals: 8,
	}
)

// Settlement is the asset every payment is converted into.
var Settlement = USDC

// Catalog lists the selectable source tokens in display order. SOL is the default.
func Catalog() []Token {
	return []Token{SOL, USDC, ETH, BTC}
}

// Default returns the token preselected in the widget.
func Default() Token {
	return SOL
}

// BySymbol looks a token up case-insensitively.
func BySymbol(symbol string) (Token, bool) {
	for _, t := range Catalog() {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return Token{}, false
}

// ByMint looks a token up by mint address.
func ByMint(mint solana.PublicKey) (Token, bool) {
	for _, t := range Catalog() {
		if t.Mint.Equals(mint) {
			return t, true
		}
	}
	return Token{}, false
}

// IsZero reports whether t is the empty token.
func (t Token) IsZero() bool {
	return t.Symbol == "" && t.Mint.IsZero()
}
