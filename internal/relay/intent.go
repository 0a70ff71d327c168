// internal/relay/intent.go
package relay

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
)

// SwapIntent describes one payment attempt. Build a fresh intent per attempt:
// quotes and blockhashes expire.
type SwapIntent struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Amount     uint64
	Sender     solana.PublicKey
	Merchant   solana.PublicKey
	// MerchantTokenAccount is the settlement-token ATA of Merchant, never
	// the merchant wallet itself.
	MerchantTokenAccount solana.PublicKey
}

// SettlementAccount derives the merchant's associated token account for the
// settlement token.
func SettlementAccount(merchant solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(merchant, token.Settlement.Mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive settlement account for %s: %w", merchant, err)
	}
	return ata, nil
}

// NewSwapIntent validates the fields and derives the merchant settlement
// account. The output mint is always the settlement token.
func NewSwapIntent(inputMint solana.PublicKey, amount uint64, sender, merchant solana.PublicKey) (SwapIntent, error) {
	intent := SwapIntent{
		InputMint:  inputMint,
		OutputMint: token.Settlement.Mint,
		Amount:     amount,
		Sender:     sender,
		Merchant:   merchant,
	}
	if err := intent.validateFields(); err != nil {
		return SwapIntent{}, err
	}
	ata, err := SettlementAccount(merchant)
	if err != nil {
		return SwapIntent{}, apperr.Validation("create-transaction", "Invalid merchant address")
	}
	intent.MerchantTokenAccount = ata
	return intent, nil
}

func (i SwapIntent) validateFields() error {
	if i.InputMint.IsZero() || i.OutputMint.IsZero() || i.Amount == 0 || i.Sender.IsZero() || i.Merchant.IsZero() {
		return apperr.Validation("create-transaction", "Missing parameters")
	}
	return nil
}

// Validate checks that every field is present and the output is settled
// into the merchant's settlement account.
func (i SwapIntent) Validate() error {
	if err := i.validateFields(); err != nil {
		return err
	}
	if !i.OutputMint.Equals(token.Settlement.Mint) {
		return apperr.Validation("create-transaction",
			fmt.Sprintf("outputMint must be %s", token.Settlement.Symbol))
	}
	want, err := SettlementAccount(i.Merchant)
	if err != nil || !want.Equals(i.MerchantTokenAccount) {
		return apperr.Validation("create-transaction", "Merchant settlement account mismatch")
	}
	return nil
}
