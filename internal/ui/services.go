package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/merchant"
	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/session"
	"github.com/rovshanmuradov/solana-checkout/internal/settlement"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

// Wallet is the session store as seen by the widget.
type Wallet interface {
	Snapshot() session.Snapshot
	Connect(ctx context.Context, name string) error
	Disconnect(ctx context.Context) error
}

// Quoter is the quote polling controller as seen by the widget.
type Quoter interface {
	Update(in quote.Inputs)
	State() quote.State
}

// Payer runs payment attempts.
type Payer interface {
	Pay(ctx context.Context, p settlement.Payment) (*settlement.Result, error)
	InProgress() bool
}

// Merchants lists and adds payees.
type Merchants interface {
	List() []merchant.Merchant
	Add(ctx context.Context, name, address string) (merchant.Merchant, error)
}

// Services bundles everything the screens call into.
type Services struct {
	Ctx       context.Context
	Wallet    Wallet
	Quotes    Quoter
	Payments  Payer
	Merchants Merchants
	Notices   *notify.Store
	Namespace *wallet.Namespace
	Logger    *zap.Logger
}

func (s *Services) context() context.Context {
	if s.Ctx == nil {
		return context.Background()
	}
	return s.Ctx
}

// ConnectCmd connects the named wallet off the update loop.
func (s *Services) ConnectCmd(name string) tea.Cmd {
	ctx := s.context()
	return func() tea.Msg {
		err := s.Wallet.Connect(ctx, name)
		if err != nil {
			s.Logger.Warn("Wallet connect failed", zap.String("wallet", name), zap.Error(err))
		}
		return ConnectDoneMsg{Wallet: name, Err: err}
	}
}

// DisconnectCmd disconnects the current wallet.
func (s *Services) DisconnectCmd() tea.Cmd {
	ctx := s.context()
	return func() tea.Msg {
		err := s.Wallet.Disconnect(ctx)
		return ConnectDoneMsg{Err: err}
	}
}

// PayCmd runs one payment attempt. The executor publishes the notification;
// the message only tells the screen the attempt is over.
func (s *Services) PayCmd(p settlement.Payment) tea.Cmd {
	ctx := s.context()
	return func() tea.Msg {
		res, err := s.Payments.Pay(ctx, p)
		return PaymentDoneMsg{Result: res, Err: err}
	}
}

// AddMerchantCmd validates and stores a merchant.
func (s *Services) AddMerchantCmd(name, address string) tea.Cmd {
	ctx := s.context()
	return func() tea.Msg {
		m, err := s.Merchants.Add(ctx, name, address)
		return MerchantAddedMsg{Merchant: m, Err: err}
	}
}
