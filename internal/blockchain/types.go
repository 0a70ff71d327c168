// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	// MaxRetries is how often the RPC node itself rebroadcasts the transaction.
	MaxRetries uint
}

// SignatureStatus is the network view of a submitted signature.
// Found is false while the node has not seen the signature yet.
type SignatureStatus struct {
	Found              bool
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	// Err is the raw on-chain error, nil on success.
	Err interface{}
}

// Client определяет интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить последний blockhash.
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// Отправить сериализованную подписанную транзакцию.
	SendRawTransaction(ctx context.Context, raw []byte, opts TransactionOptions) (solana.Signature, error)
	// Отправить транзакцию с опциями по умолчанию.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Статус подписи с поиском по истории.
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*SignatureStatus, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}
