package screen

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-checkout/internal/merchant"
	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/session"
	"github.com/rovshanmuradov/solana-checkout/internal/settlement"
	"github.com/rovshanmuradov/solana-checkout/internal/storage/memory"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
	"github.com/rovshanmuradov/solana-checkout/internal/ui"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/router"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

type fakeWallet struct {
	snap       session.Snapshot
	connectErr error
	connected  []string
}

func (f *fakeWallet) Snapshot() session.Snapshot { return f.snap }

func (f *fakeWallet) Connect(_ context.Context, name string) error {
	f.connected = append(f.connected, name)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.snap = session.Snapshot{Status: session.Connected, WalletName: name}
	return nil
}

func (f *fakeWallet) Disconnect(context.Context) error {
	f.snap = session.Snapshot{}
	return nil
}

type fakeQuoter struct {
	mu     sync.Mutex
	inputs []quote.Inputs
}

func (f *fakeQuoter) Update(in quote.Inputs) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
}

func (f *fakeQuoter) State() quote.State {
	return quote.State{Display: quote.UnavailableDisplay()}
}

func (f *fakeQuoter) last() quote.Inputs {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return quote.Inputs{}
	}
	return f.inputs[len(f.inputs)-1]
}

type fakePayer struct {
	payments []settlement.Payment
}

func (f *fakePayer) Pay(_ context.Context, p settlement.Payment) (*settlement.Result, error) {
	f.payments = append(f.payments, p)
	return &settlement.Result{State: settlement.Confirmed, Link: "https://solscan.io/tx/abc"}, nil
}

func (f *fakePayer) InProgress() bool { return false }

type fixture struct {
	svc      *ui.Services
	wallet   *fakeWallet
	quotes   *fakeQuoter
	payments *fakePayer
	screen   *CheckoutScreen
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := merchant.NewRegistry(context.Background(), memory.New(), notify.Nop{}, logger)

	ns := wallet.NewNamespace()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	kp, err := wallet.NewKeypair(pk.String())
	require.NoError(t, err)
	ns.Inject("keypair", kp)

	f := &fixture{
		wallet:   &fakeWallet{},
		quotes:   &fakeQuoter{},
		payments: &fakePayer{},
	}
	f.svc = &ui.Services{
		Ctx:       context.Background(),
		Wallet:    f.wallet,
		Quotes:    f.quotes,
		Payments:  f.payments,
		Merchants: registry,
		Notices:   notify.NewStore(),
		Namespace: ns,
		Logger:    logger,
	}
	f.screen = NewCheckoutScreen(f.svc)
	return f
}

func keyMsg(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typeText(s *CheckoutScreen, text string) {
	for _, r := range text {
		s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// run executes cmd and flattens batches into the produced messages.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if msg == nil {
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestCheckoutAmountInput(t *testing.T) {
	f := newFixture(t)

	typeText(f.screen, "12a34.5.6")
	assert.Equal(t, "1234.56", f.screen.clean)
	assert.Equal(t, "1,234.56", f.screen.amount.Value())

	last := f.quotes.last()
	assert.Equal(t, "1234.56", last.Amount)
	assert.Equal(t, token.SOL.Symbol, last.Token.Symbol)
	assert.False(t, last.MerchantSelected)
}

func TestCheckoutAmountWords(t *testing.T) {
	f := newFixture(t)
	typeText(f.screen, "12")
	assert.Contains(t, f.screen.View(), "twelve Solana")
}

func TestCheckoutSelectTokenAndMerchant(t *testing.T) {
	f := newFixture(t)
	typeText(f.screen, "1")

	f.screen.Update(keyMsg(tea.KeyShiftTab)) // token
	f.screen.Update(keyMsg(tea.KeyRight))
	assert.Equal(t, token.USDC.Symbol, f.screen.Token().Symbol)
	assert.Equal(t, token.USDC.Symbol, f.quotes.last().Token.Symbol)

	f.screen.Update(keyMsg(tea.KeyTab)) // amount
	f.screen.Update(keyMsg(tea.KeyTab)) // merchant
	f.screen.Update(keyMsg(tea.KeyRight))
	m, ok := f.screen.Merchant()
	require.True(t, ok)
	assert.Equal(t, "Merchant 1", m.Name)
	assert.True(t, f.quotes.last().MerchantSelected)

	// влево с первого мерчанта снимает выбор
	f.screen.Update(keyMsg(tea.KeyLeft))
	_, ok = f.screen.Merchant()
	assert.False(t, ok)
	assert.False(t, f.quotes.last().MerchantSelected)

	f.screen.Update(keyMsg(tea.KeyLeft))
	m, ok = f.screen.Merchant()
	require.True(t, ok)
	assert.Equal(t, "Merchant 2", m.Name)
}

func TestCheckoutIgnoresOlderQuoteGeneration(t *testing.T) {
	f := newFixture(t)

	f.screen.Update(ui.QuoteMsg{State: quote.State{Status: quote.StatusIdle, Generation: 3}})
	f.screen.Update(ui.QuoteMsg{State: quote.State{Status: quote.StatusReady, Generation: 2}})
	assert.Equal(t, quote.StatusIdle, f.screen.quote.Status)
	assert.Equal(t, uint64(3), f.screen.quote.Generation)

	f.screen.Update(ui.QuoteMsg{State: quote.State{Status: quote.StatusLoading, Generation: 3}})
	assert.Equal(t, quote.StatusLoading, f.screen.quote.Status)
}

func TestCheckoutButtonFlow(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ui.LabelConnect, f.screen.Button().Label)

	// Connect opens the wallet sheet
	_, cmd := f.screen.Update(keyMsg(tea.KeyEnter))
	msgs := run(cmd)
	require.Len(t, msgs, 1)
	push, ok := msgs[0].(router.PushMsg)
	require.True(t, ok)
	_, isSheet := push.Screen.(*WalletsScreen)
	assert.True(t, isSheet)

	f.screen.Update(ui.SessionMsg{Snapshot: session.Snapshot{Status: session.Connected, WalletName: wallet.Local}})
	assert.Equal(t, ui.LabelEnterAmount, f.screen.Button().Label)

	typeText(f.screen, "0.5")
	assert.Equal(t, ui.LabelSelectMerchant, f.screen.Button().Label)

	f.screen.Update(keyMsg(tea.KeyTab))
	f.screen.Update(keyMsg(tea.KeyRight))
	assert.Equal(t, ui.LabelPay, f.screen.Button().Label)

	_, cmd = f.screen.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, ui.LabelProcessing, f.screen.Button().Label)
	for _, msg := range run(cmd) {
		if done, ok := msg.(ui.PaymentDoneMsg); ok {
			f.screen.Update(done)
		}
	}

	require.Len(t, f.payments.payments, 1)
	p := f.payments.payments[0]
	assert.Equal(t, token.SOL.Symbol, p.Token.Symbol)
	assert.Equal(t, uint64(500_000_000), p.Amount)
	assert.Equal(t, "8m4JS8gdXzw7xhG1ExKxoKL2MZ9EyKXwWqNqRJsYxmXb", p.Merchant.String())

	assert.Equal(t, ui.LabelPay, f.screen.Button().Label)
	assert.Contains(t, f.screen.View(), "https://solscan.io/tx/abc")
}

func TestCheckoutMerchantAdded(t *testing.T) {
	f := newFixture(t)

	added, err := f.svc.Merchants.Add(context.Background(), "Coffee", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, err)
	f.screen.Update(ui.MerchantAddedMsg{Merchant: added})
	m, ok := f.screen.Merchant()
	require.True(t, ok)
	assert.Equal(t, "Coffee", m.Name)
}

func TestWalletsSheetConnects(t *testing.T) {
	f := newFixture(t)
	sheet := NewWalletsScreen(f.svc)

	require.Len(t, sheet.detection.Installed, 1)
	assert.Equal(t, wallet.Local, sheet.detection.Installed[0].Name)
	assert.NotEmpty(t, sheet.detection.Recommended)

	_, cmd := sheet.Update(keyMsg(tea.KeyEnter))
	msgs := run(cmd)
	require.Len(t, msgs, 1)
	done := msgs[0].(ui.ConnectDoneMsg)
	assert.NoError(t, done.Err)
	assert.Equal(t, []string{wallet.Local}, f.wallet.connected)

	_, cmd = sheet.Update(done)
	require.NotNil(t, cmd)
	assert.IsType(t, router.PopMsg{}, cmd())
}

func TestWalletsSheetShowsError(t *testing.T) {
	f := newFixture(t)
	f.wallet.connectErr = wallet.ErrConnectionRejected
	sheet := NewWalletsScreen(f.svc)

	_, cmd := sheet.Update(keyMsg(tea.KeyEnter))
	msgs := run(cmd)
	require.Len(t, msgs, 1)

	_, cmd = sheet.Update(msgs[0])
	assert.Nil(t, cmd, "sheet stays open on failure")
	assert.NotEmpty(t, sheet.err)
}

func TestMerchantFormValidation(t *testing.T) {
	f := newFixture(t)
	form := NewMerchantForm(f.svc)

	for _, r := range "Shop" {
		form.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	form.Update(keyMsg(tea.KeyEnter)) // к адресу
	for _, r := range "not-an-address" {
		form.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, cmd := form.Update(keyMsg(tea.KeyEnter))
	msgs := run(cmd)
	require.Len(t, msgs, 1)

	_, cmd = form.Update(msgs[0])
	assert.Nil(t, cmd)
	assert.NotEmpty(t, form.err)
	assert.Len(t, f.svc.Merchants.List(), len(merchant.Defaults()))
}

func TestAppRoutesNotifications(t *testing.T) {
	f := newFixture(t)
	updates := ui.NewUpdateSender(8, zaptest.NewLogger(t))
	defer updates.Close()
	app := NewApp(f.svc, updates)

	n := notify.Error("Payment Failed", "Transaction data missing")
	_, cmd := app.Update(ui.NotificationMsg{Notification: n})
	assert.NotNil(t, cmd, "listener is re-armed")
	require.Len(t, f.svc.Notices.Active(), 1)
	assert.Contains(t, app.View(), "Payment Failed")

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, f.svc.Notices.Active())

	app.Update(router.PushMsg{Screen: NewMerchantForm(f.svc)})
	assert.Equal(t, 2, app.Router().Depth())
	app.Update(keyMsg(tea.KeyEsc))
	assert.Equal(t, 1, app.Router().Depth())
}
