// internal/relay/wire.go
package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a base-unit integer. It decodes from a JSON number or a numeric
// string and encodes as a number.
type Amount uint64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(a), 10)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s", data)
	}
	*a = Amount(v)
	return nil
}

type GetQuoteRequest struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	Amount     Amount `json:"amount"`
}

type GetQuoteResponse struct {
	Success   bool            `json:"success"`
	QuoteData json.RawMessage `json:"quoteData,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type CreateTransactionRequest struct {
	InputMint         string `json:"inputMint"`
	OutputMint        string `json:"outputMint"`
	Amount            Amount `json:"amount"`
	UserPublicKey     string `json:"userPublicKey"`
	MerchantPublicKey string `json:"merchantPublicKey"`
}

type SwapInfo struct {
	InputAmount          Amount `json:"inputAmount"`
	ExpectedOutputAmount Amount `json:"expectedOutputAmount"`
	Fee                  Amount `json:"fee"`
}

type CreateTransactionResponse struct {
	SerializedTransaction string   `json:"serializedTransaction,omitempty"`
	Message               string   `json:"message,omitempty"`
	SwapInfo              SwapInfo `json:"swapInfo"`
	Error                 string   `json:"error,omitempty"`
}

type SetAddressesRequest struct {
	SenderPubKey   string `json:"senderPubKey"`
	MerchantPubKey string `json:"merchantPubKey"`
}

type SetAddressesResponse struct {
	Success              bool   `json:"success"`
	MerchantTokenAccount string `json:"merchantTokenAccount,omitempty"`
	Error                string `json:"error,omitempty"`
}

type ConfirmTransactionRequest struct {
	Signature string `json:"signature"`
}

type ConfirmTransactionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendTransactionRequest is accepted only by a custodial deployment.
type SendTransactionRequest struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	Amount     Amount `json:"amount"`
	// MerchantPublicKey is optional; without it the output stays with the
	// custodial wallet.
	MerchantPublicKey string `json:"merchantPublicKey,omitempty"`
}

type SendTransactionResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Link      string `json:"link,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
