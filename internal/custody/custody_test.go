package custody

import (
	"context"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/blockchain"
	"github.com/rovshanmuradov/solana-checkout/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-checkout/internal/relay"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

var merchant = solana.MustPublicKeyFromBase58("3KLB9Tqsj1x4yvJkwxVUhRucYEvKGRxvgqkGHsVPshCq")

type payerBuilder struct {
	payer  solana.PublicKey
	intent relay.SwapIntent
}

func (b *payerBuilder) Build(_ context.Context, intent relay.SwapIntent) (*relay.Envelope, error) {
	b.intent = intent
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(5000, b.payer, merchant).Build()},
		solana.Hash{1},
		solana.TransactionPayer(b.payer),
	)
	if err != nil {
		return nil, err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &relay.Envelope{Raw: raw}, nil
}

type fakeChain struct {
	opts    blockchain.TransactionOptions
	raw     []byte
	status  *blockchain.SignatureStatus
	balance uint64
}

func (c *fakeChain) GetBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (uint64, error) {
	return c.balance, nil
}

func (c *fakeChain) SendRawTransaction(_ context.Context, raw []byte, opts blockchain.TransactionOptions) (solana.Signature, error) {
	c.raw = raw
	c.opts = opts
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, err
	}
	return tx.Signatures[0], nil
}

func (c *fakeChain) GetSignatureStatus(context.Context, solana.Signature) (*blockchain.SignatureStatus, error) {
	if c.status == nil {
		return &blockchain.SignatureStatus{}, nil
	}
	return c.status, nil
}

func newService(t *testing.T, builderPayer *solana.PublicKey) (*Service, *fakeChain, *payerBuilder) {
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	kp, err := wallet.NewKeypair(pk.String())
	require.NoError(t, err)

	payer := kp.Address()
	if builderPayer != nil {
		payer = *builderPayer
	}
	b := &payerBuilder{payer: payer}
	chain := &fakeChain{balance: 10_000_000_000}
	return NewService(kp, b, chain, solbc.DefaultSendOptions, "https://solscan.io/tx/", zaptest.NewLogger(t)), chain, b
}

func TestSendSignsAndSubmits(t *testing.T) {
	svc, chain, b := newService(t, nil)

	rec, err := svc.Send(context.Background(), Order{
		InputMint: token.SOL.Mint,
		Amount:    1_000_000,
		Merchant:  merchant,
	})
	require.NoError(t, err)

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(chain.raw))
	require.NoError(t, err)
	assert.NoError(t, tx.VerifySignatures())
	assert.Equal(t, tx.Signatures[0], rec.Signature)
	assert.Equal(t, "https://solscan.io/tx/"+rec.Signature.String(), rec.Link)
	assert.Nil(t, rec.Status)

	assert.Equal(t, uint(10), chain.opts.MaxRetries)
	assert.Equal(t, rpc.CommitmentFinalized, chain.opts.PreflightCommitment)
	assert.Equal(t, svc.Address(), b.intent.Sender)
	assert.Equal(t, merchant, b.intent.Merchant)
}

func TestSendDefaultsToCustodialDestination(t *testing.T) {
	svc, _, b := newService(t, nil)

	_, err := svc.Send(context.Background(), Order{InputMint: token.SOL.Mint, Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, svc.Address(), b.intent.Merchant)
	ata, err := relay.SettlementAccount(svc.Address())
	require.NoError(t, err)
	assert.Equal(t, ata, b.intent.MerchantTokenAccount)
}

func TestSendOnChainFailure(t *testing.T) {
	svc, chain, _ := newService(t, nil)
	chain.status = &blockchain.SignatureStatus{
		Found: true,
		Err:   map[string]interface{}{"InstructionError": []interface{}{2, "InvalidAccountData"}},
	}

	rec, err := svc.Send(context.Background(), Order{InputMint: token.SOL.Mint, Amount: 1, Merchant: merchant})
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, apperr.KindOnChain, apperr.KindOf(err))
	assert.Contains(t, apperr.UserMessage(err), `{"InstructionError":[2,"InvalidAccountData"]}`)
	assert.Contains(t, rec.Link, rec.Signature.String())
}

func TestSendValidation(t *testing.T) {
	svc, chain, _ := newService(t, nil)

	_, err := svc.Send(context.Background(), Order{InputMint: token.SOL.Mint})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Send(context.Background(), Order{InputMint: token.SOL.Mint, OutputMint: token.ETH.Mint, Amount: 5})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Nil(t, chain.raw)
}

func TestSendRejectsForeignPayer(t *testing.T) {
	other := solana.NewWallet().PublicKey()
	svc, chain, _ := newService(t, &other)

	_, err := svc.Send(context.Background(), Order{InputMint: token.SOL.Mint, Amount: 1})
	assert.ErrorIs(t, err, ErrSignerMismatch)
	assert.Nil(t, chain.raw)
}

func TestSendRejectsInsufficientBalance(t *testing.T) {
	svc, chain, _ := newService(t, nil)
	chain.balance = 999

	_, err := svc.Send(context.Background(), Order{InputMint: token.SOL.Mint, Amount: 1_000, Merchant: merchant})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Insufficient SOL balance", apperr.UserMessage(err))
	assert.Nil(t, chain.raw)

	// для SPL-токенов баланс SOL не проверяется
	_, err = svc.Send(context.Background(), Order{InputMint: token.USDC.Mint, Amount: 1_000, Merchant: merchant})
	assert.NoError(t, err)
}
