// internal/settlement/executor.go
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/blockchain"
	"github.com/rovshanmuradov/solana-checkout/internal/metrics"
	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/relay"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

const (
	DefaultExplorerURL         = "https://solscan.io/tx/"
	DefaultBuildTimeout        = 30 * time.Second
	DefaultConfirmTimeout      = 60 * time.Second
	DefaultConfirmPollInterval = 2 * time.Second
)

var (
	ErrPaymentInProgress   = errors.New("payment already in progress")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrWalletNotReady      = errors.New("wallet capabilities not bound")
	ErrTransactionMissing  = errors.New("transaction data missing")
	ErrNotConfirmed        = errors.New("transaction not confirmed before timeout")
	errSignatureNotVisible = errors.New("signature not yet visible")
)

// Payer is the connected wallet as seen by the executor.
type Payer interface {
	PublicKey() (solana.PublicKey, bool)
	// Ready reports whether Transact can run now. A session restored from
	// disk has an address but no live capabilities until it is rebound.
	Ready() bool
	Transact(ctx context.Context, tx *solana.Transaction, network wallet.Network) (solana.Signature, error)
}

// Registrar registers the sender/merchant pair and returns the merchant
// settlement account.
type Registrar interface {
	SetAddresses(ctx context.Context, sender, merchant solana.PublicKey) (solana.PublicKey, error)
}

// Confirmer records a confirmed signature on the backend.
type Confirmer interface {
	ConfirmTransaction(ctx context.Context, signature solana.Signature) (string, error)
}

// Network submits transactions and reports signature status.
type Network interface {
	wallet.Network
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*blockchain.SignatureStatus, error)
}

// Payment is what the buyer asked to pay.
type Payment struct {
	Token    token.Token
	Amount   uint64
	Merchant solana.PublicKey
}

type Options struct {
	// Registrar is optional; without it the settlement account is derived locally.
	Registrar Registrar
	// Confirmer is optional and called best-effort after confirmation.
	Confirmer           Confirmer
	ExplorerURL         string
	BuildTimeout        time.Duration
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	Metrics             *metrics.Collector
}

// Executor runs payment attempts. One attempt runs at a time; every attempt
// ends in Confirmed, Failed or Cancelled with exactly one notification.
type Executor struct {
	payer    Payer
	builder  relay.Builder
	network  Network
	notifier notify.Notifier
	opts     Options
	logger   *zap.Logger
	busy     atomic.Bool
}

func NewExecutor(payer Payer, builder relay.Builder, network Network, notifier notify.Notifier, opts Options, logger *zap.Logger) *Executor {
	if opts.ExplorerURL == "" {
		opts.ExplorerURL = DefaultExplorerURL
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = DefaultBuildTimeout
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.ConfirmPollInterval <= 0 {
		opts.ConfirmPollInterval = DefaultConfirmPollInterval
	}
	return &Executor{
		payer:    payer,
		builder:  builder,
		network:  network,
		notifier: notifier,
		opts:     opts,
		logger:   logger.Named("settlement"),
	}
}

// InProgress reports whether an attempt is running.
func (e *Executor) InProgress() bool {
	return e.busy.Load()
}

// ExplorerLink returns the block explorer URL for sig.
func (e *Executor) ExplorerLink(sig solana.Signature) string {
	return strings.TrimRight(e.opts.ExplorerURL, "/") + "/" + sig.String()
}

// Pay runs one attempt to completion. The returned error is the cause of a
// Failed or Cancelled attempt; ErrPaymentInProgress means no attempt started.
func (e *Executor) Pay(ctx context.Context, p Payment) (*Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, apperr.Wrap(apperr.KindValidation, "pay", "A payment is already in progress", ErrPaymentInProgress)
	}
	defer e.busy.Store(false)

	res := &Result{ID: uuid.NewString(), State: Idle, History: []State{Idle}, Started: time.Now()}
	logger := e.logger.With(
		zap.String("attempt_id", res.ID),
		zap.String("token", p.Token.Symbol),
		zap.Uint64("amount", p.Amount),
		zap.String("merchant", p.Merchant.String()))
	logger.Info("Payment attempt started")

	err := e.run(ctx, p, res, logger)
	res.Finished = time.Now()
	if err != nil {
		res.Err = err
		if apperr.Is(err, apperr.KindUserCancelled) {
			res.advance(Cancelled)
		} else {
			res.advance(Failed)
		}
	} else {
		res.advance(Confirmed)
	}

	e.finish(ctx, res, logger)
	return res, err
}

func (e *Executor) run(ctx context.Context, p Payment, res *Result, logger *zap.Logger) error {
	sender, ok := e.payer.PublicKey()
	if !ok {
		return apperr.Provider("pay", "Please connect your wallet first", ErrWalletNotConnected)
	}
	if !e.payer.Ready() {
		return apperr.Provider("pay", "Wallet is not ready, please reconnect", ErrWalletNotReady)
	}
	if p.Token.IsZero() || p.Amount == 0 || p.Merchant.IsZero() {
		return apperr.Validation("pay", "Missing parameters")
	}

	// 1. addresses
	var ata solana.PublicKey
	var err error
	if e.opts.Registrar != nil {
		ata, err = e.opts.Registrar.SetAddresses(ctx, sender, p.Merchant)
	} else {
		ata, err = relay.SettlementAccount(p.Merchant)
	}
	if err != nil {
		return wrapUpstream("set-addresses", "Failed to register addresses", err)
	}
	res.advance(AddressesRegistered)

	// 2. build
	intent, err := relay.NewSwapIntent(p.Token.Mint, p.Amount, sender, p.Merchant)
	if err != nil {
		return err
	}
	if !intent.MerchantTokenAccount.Equals(ata) {
		return apperr.Upstream("set-addresses", "Merchant settlement account mismatch",
			fmt.Errorf("registered %s, derived %s", ata, intent.MerchantTokenAccount))
	}
	buildCtx, cancel := context.WithTimeout(ctx, e.opts.BuildTimeout)
	env, err := e.builder.Build(buildCtx, intent)
	cancel()
	if err != nil {
		if errors.Is(err, relay.ErrNoTransaction) {
			return apperr.Upstream("create-transaction", "Transaction data missing", ErrTransactionMissing)
		}
		return wrapUpstream("create-transaction", "Failed to create transaction", err)
	}
	if env == nil || len(env.Raw) == 0 {
		return apperr.Upstream("create-transaction", "Transaction data missing", ErrTransactionMissing)
	}
	res.advance(TransactionBuilt)
	logger.Debug("Transaction built",
		zap.Uint64("expected_out", uint64(env.SwapInfo.ExpectedOutputAmount)),
		zap.Uint64("fee", uint64(env.SwapInfo.Fee)))

	// 3. sign and submit
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(env.Raw))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "decode-transaction", "Failed to decode transaction", err)
	}
	sig, err := e.payer.Transact(ctx, tx, e.network)
	if err != nil {
		return err
	}
	res.advance(Signed)
	res.advance(Submitted)
	res.Signature = sig
	res.Link = e.ExplorerLink(sig)
	logger.Info("Transaction submitted", zap.String("signature", sig.String()))

	// 4. confirm
	return e.confirm(ctx, sig, logger)
}

// confirm polls the signature status with history search until it is
// confirmed, fails on chain, or the confirm timeout elapses. The transaction
// is never re-submitted here.
func (e *Executor) confirm(ctx context.Context, sig solana.Signature, logger *zap.Logger) error {
	op := func() (*blockchain.SignatureStatus, error) {
		status, err := e.network.GetSignatureStatus(ctx, sig)
		if err != nil {
			logger.Debug("Signature status error", zap.Error(err))
			return nil, err
		}
		if !status.Found {
			return nil, errSignatureNotVisible
		}
		if status.Err == nil &&
			status.ConfirmationStatus != rpc.ConfirmationStatusConfirmed &&
			status.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
			return nil, errSignatureNotVisible
		}
		return status, nil
	}

	status, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.opts.ConfirmPollInterval)),
		backoff.WithMaxElapsedTime(e.opts.ConfirmTimeout),
	)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Upstream("confirm", "Confirmation was interrupted", ctx.Err())
		}
		return apperr.Upstream("confirm", "Transaction could not be confirmed in time, check the explorer",
			fmt.Errorf("%w: %v", ErrNotConfirmed, err))
	}
	if status.Err != nil {
		return apperr.OnChainJSON("confirm", status.Err)
	}
	logger.Info("Transaction confirmed",
		zap.Uint64("slot", status.Slot),
		zap.String("commitment", string(status.ConfirmationStatus)))
	return nil
}

func (e *Executor) finish(ctx context.Context, res *Result, logger *zap.Logger) {
	e.opts.Metrics.RecordSettlement(res.State.String(), res.Duration())

	switch res.State {
	case Confirmed:
		logger.Info("Payment confirmed", zap.String("signature", res.Signature.String()))
		n := notify.Success("Payment Confirmed",
			fmt.Sprintf("Payment settled in %s. Signature: %s", token.Settlement.Symbol, res.Signature))
		n.Link = res.Link
		e.notifier.Notify(n)
		if e.opts.Confirmer != nil {
			if _, err := e.opts.Confirmer.ConfirmTransaction(context.WithoutCancel(ctx), res.Signature); err != nil {
				logger.Warn("Failed to record confirmed transaction", zap.Error(err))
			}
		}
	case Cancelled:
		logger.Info("Payment cancelled by user")
		e.notifier.Notify(notify.Info("Payment Cancelled", "Transaction was cancelled by the user"))
	default:
		logger.Warn("Payment failed", zap.Error(res.Err), zap.Stringer("state", res.State))
		n := notify.Error("Payment Failed", apperr.UserMessage(res.Err))
		n.Link = res.Link
		e.notifier.Notify(n)
	}
}

// wrapUpstream keeps typed errors and classifies the rest as upstream.
func wrapUpstream(op, message string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Upstream(op, message, err)
}
