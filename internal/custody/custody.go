// internal/custody/custody.go
package custody

import (
	"context"
	"errors"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/blockchain"
	"github.com/rovshanmuradov/solana-checkout/internal/logger"
	"github.com/rovshanmuradov/solana-checkout/internal/relay"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

const op = "send-transaction"

var ErrSignerMismatch = errors.New("transaction fee payer is not the custodial key")

// Chain is the part of the RPC client the custodial path needs.
type Chain interface {
	SendRawTransaction(ctx context.Context, raw []byte, opts blockchain.TransactionOptions) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*blockchain.SignatureStatus, error)
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}

// Order is a swap paid from the custodial wallet.
type Order struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Amount     uint64
	// Merchant receives the settlement token; zero means the custodial wallet itself.
	Merchant solana.PublicKey
}

// Receipt describes a submitted custodial transaction.
type Receipt struct {
	Signature solana.Signature
	Link      string
	// Status is the first status seen right after submission, nil if the
	// node did not know the signature yet.
	Status *blockchain.SignatureStatus
}

// Service builds, signs and submits swaps with a server-held key.
// It never handles transactions signed by a buyer wallet.
type Service struct {
	signer      *wallet.Keypair
	builder     relay.Builder
	chain       Chain
	sendOpts    blockchain.TransactionOptions
	explorerURL string
	logger      *zap.Logger
}

func NewService(signer *wallet.Keypair, builder relay.Builder, chain Chain, sendOpts blockchain.TransactionOptions, explorerURL string, logger *zap.Logger) *Service {
	return &Service{
		signer:      signer,
		builder:     builder,
		chain:       chain,
		sendOpts:    sendOpts,
		explorerURL: strings.TrimRight(explorerURL, "/"),
		logger:      logger.Named("custody"),
	}
}

// Address is the custodial public key.
func (s *Service) Address() solana.PublicKey {
	return s.signer.Address()
}

// Send runs build, sign, submit and a single status check. An on-chain error
// reported by that check fails the call; the receipt still carries the link.
func (s *Service) Send(ctx context.Context, o Order) (*Receipt, error) {
	defer logger.TrackPerformance(s.logger, op)()

	if o.InputMint.IsZero() || o.Amount == 0 {
		return nil, apperr.Validation(op, "Missing fields")
	}
	merchant := o.Merchant
	if merchant.IsZero() {
		merchant = s.signer.Address()
	}
	intent, err := relay.NewSwapIntent(o.InputMint, o.Amount, s.signer.Address(), merchant)
	if err != nil {
		return nil, err
	}
	if !o.OutputMint.IsZero() && !o.OutputMint.Equals(intent.OutputMint) {
		return nil, apperr.Validation(op, "Unsupported outputMint")
	}
	if err := s.checkBalance(ctx, o); err != nil {
		return nil, err
	}

	env, err := s.builder.Build(ctx, intent)
	if err != nil {
		return nil, err
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(env.Raw))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "Failed to decode transaction", err)
	}
	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(s.signer.Address()) {
		return nil, apperr.Wrap(apperr.KindInternal, op, "Failed to sign transaction", ErrSignerMismatch)
	}
	if err := s.signer.SignTransaction(ctx, tx); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "Failed to sign transaction", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "Failed to serialize transaction", err)
	}

	sig, err := s.chain.SendRawTransaction(ctx, raw, s.sendOpts)
	if err != nil {
		return nil, apperr.Upstream(op, "Failed to send transaction", err)
	}
	rec := &Receipt{Signature: sig, Link: s.explorerURL + "/" + sig.String()}
	s.logger.Info("Custodial transaction submitted",
		zap.String("signature", sig.String()),
		zap.String("merchant", merchant.String()),
		zap.Uint64("amount", o.Amount))

	status, err := s.chain.GetSignatureStatus(ctx, sig)
	if err != nil {
		// Отправка уже прошла, статус проверим позже через confirm-transaction.
		s.logger.Warn("Status check failed", zap.String("signature", sig.String()), zap.Error(err))
		return rec, nil
	}
	if status.Found {
		rec.Status = status
	}
	if status.Found && status.Err != nil {
		return rec, apperr.OnChainJSON(op, status.Err)
	}
	return rec, nil
}

// checkBalance отсекает заведомо неоплатные SOL-свопы до обращения к агрегатору.
// Комиссию сети не учитываем, её проверит preflight.
func (s *Service) checkBalance(ctx context.Context, o Order) error {
	if !o.InputMint.Equals(token.SOL.Mint) {
		return nil
	}
	balance, err := s.chain.GetBalance(ctx, s.signer.Address(), rpc.CommitmentConfirmed)
	if err != nil {
		return apperr.Upstream(op, "Failed to read custodial balance", err)
	}
	if balance < o.Amount {
		s.logger.Warn("Custodial balance too low",
			zap.Uint64("balance", balance),
			zap.Uint64("amount", o.Amount))
		return apperr.Validation(op, "Insufficient SOL balance")
	}
	return nil
}
