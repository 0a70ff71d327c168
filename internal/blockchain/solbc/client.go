// internal/blockchain/solbc/client.go
package solbc

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/blockchain"
	solrpc "github.com/rovshanmuradov/solana-checkout/internal/blockchain/solbc/rpc"
)

// DefaultSendOptions are used for every settlement submission: the node
// rebroadcasts up to ten times and preflight runs against finalized state.
var DefaultSendOptions = blockchain.TransactionOptions{
	PreflightCommitment: rpc.CommitmentFinalized,
	MaxRetries:          10,
}

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc         *rpc.Client
	url         string
	sendOptions blockchain.TransactionOptions
	logger      *zap.Logger
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:         rpc.New(rpcURL),
		url:         rpcURL,
		sendOptions: DefaultSendOptions,
		logger:      logger.Named("solbc-client"),
	}
}

// WithSendOptions overrides the options SendTransaction uses.
func (c *Client) WithSendOptions(opts blockchain.TransactionOptions) *Client {
	c.sendOptions = opts
	return c
}

// GetRecentBlockhash получает последний blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, solrpc.NewError(err, c.url, "getLatestBlockhash")
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, solrpc.NewError(solrpc.ErrInvalidResponse, c.url, "getLatestBlockhash")
	}
	return result.Value.Blockhash, nil
}

// Ping reports whether the node answers. Used by the relay health check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetRecentBlockhash(ctx)
	return err
}

// SendRawTransaction отправляет подписанную сериализованную транзакцию.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte, opts blockchain.TransactionOptions) (solana.Signature, error) {
	if len(raw) == 0 {
		return solana.Signature{}, solrpc.ErrEmptyTransaction
	}
	maxRetries := opts.MaxRetries
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		c.logger.Error("SendRawTransaction error", zap.Error(err))
		return solana.Signature{}, solrpc.NewError(err, c.url, "sendTransaction")
	}
	c.logger.Debug("Transaction submitted", zap.String("signature", sig.String()))
	return sig, nil
}

// SendTransaction сериализует и отправляет транзакцию с опциями клиента.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, err
	}
	return c.SendRawTransaction(ctx, raw, c.sendOptions)
}

// GetSignatureStatus получает статус подписи, включая поиск по истории.
func (c *Client) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*blockchain.SignatureStatus, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, true, signature)
	if err != nil {
		c.logger.Warn("GetSignatureStatuses error",
			zap.String("signature", signature.String()),
			zap.Error(err))
		return nil, solrpc.NewError(err, c.url, "getSignatureStatuses")
	}
	// Запрошена одна подпись, пустой массив означает битый ответ
	if result == nil || len(result.Value) == 0 {
		return nil, solrpc.NewError(solrpc.ErrInvalidResponse, c.url, "getSignatureStatuses")
	}
	if result.Value[0] == nil {
		return &blockchain.SignatureStatus{Found: false}, nil
	}
	status := result.Value[0]
	return &blockchain.SignatureStatus{
		Found:              true,
		Slot:               status.Slot,
		ConfirmationStatus: status.ConfirmationStatus,
		Err:                status.Err,
	}, nil
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, solrpc.NewError(err, c.url, "getBalance")
	}
	return result.Value, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
