package screen

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/merchant"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/session"
	"github.com/rovshanmuradov/solana-checkout/internal/settlement"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
	"github.com/rovshanmuradov/solana-checkout/internal/ui"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/component"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/router"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/style"
)

type field int

const (
	fieldToken field = iota
	fieldAmount
	fieldMerchant
	fieldPay
	fieldCount
)

// CheckoutScreen is the payment widget: source token and amount, merchant,
// live USDC quote and the primary button.
type CheckoutScreen struct {
	svc     *ui.Services
	keys    ui.KeyMap
	styles  style.Styles
	help    *component.HelpBar
	spinner spinner.Model

	tokens      []token.Token
	tokenIdx    int
	amount      textinput.Model
	clean       string
	merchants   []merchant.Merchant
	merchantIdx int // -1: ничего не выбрано
	focus       field

	quote   quote.State
	session session.Snapshot
	paying  bool
	last    *settlement.Result

	width  int
	height int
}

// NewCheckoutScreen creates the checkout screen with the default token
// preselected and no merchant.
func NewCheckoutScreen(svc *ui.Services) *CheckoutScreen {
	ti := textinput.New()
	ti.Placeholder = "0.00"
	ti.Prompt = ""
	ti.CharLimit = 32
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(style.DefaultPalette().Focus)

	s := &CheckoutScreen{
		svc:         svc,
		keys:        ui.DefaultKeyMap(),
		styles:      style.DefaultStyles(),
		help:        component.NewHelpBar(),
		spinner:     sp,
		tokens:      token.Catalog(),
		amount:      ti,
		merchants:   svc.Merchants.List(),
		merchantIdx: -1,
		focus:       fieldAmount,
		quote:       svc.Quotes.State(),
		session:     svc.Wallet.Snapshot(),
	}
	for i, t := range s.tokens {
		if t.Symbol == token.Default().Symbol {
			s.tokenIdx = i
		}
	}
	s.help.SetKeyBindings(s.keys.CheckoutHelp())
	return s
}

func (s *CheckoutScreen) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, s.spinner.Tick)
}

func (s *CheckoutScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.help.SetWidth(width)
}

// Token returns the selected source token.
func (s *CheckoutScreen) Token() token.Token {
	return s.tokens[s.tokenIdx]
}

// Merchant returns the selected merchant, if any.
func (s *CheckoutScreen) Merchant() (merchant.Merchant, bool) {
	if s.merchantIdx < 0 || s.merchantIdx >= len(s.merchants) {
		return merchant.Merchant{}, false
	}
	return s.merchants[s.merchantIdx], true
}

// Button derives the primary button from the current state.
func (s *CheckoutScreen) Button() ui.Button {
	_, selected := s.Merchant()
	return ui.PayButton(ui.ButtonInput{
		Connected:        s.session.IsConnected(),
		Connecting:       s.session.IsConnecting(),
		Paying:           s.paying,
		MerchantSelected: selected,
		Amount:           s.clean,
	})
}

func (s *CheckoutScreen) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.QuoteMsg:
		// состояние старшего поколения не откатываем
		if msg.State.Generation < s.quote.Generation {
			return s, nil
		}
		s.quote = msg.State
		return s, nil

	case ui.SessionMsg:
		s.session = msg.Snapshot
		return s, nil

	case ui.PaymentDoneMsg:
		s.paying = false
		s.last = msg.Result
		return s, nil

	case ui.MerchantAddedMsg:
		if msg.Err != nil {
			return s, nil
		}
		s.merchants = s.svc.Merchants.List()
		for i, m := range s.merchants {
			if m.ID == msg.Merchant.ID {
				s.merchantIdx = i
			}
		}
		s.pushInputs()
		return s, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		return s, s.handleKey(msg)
	}

	if s.focus == fieldAmount {
		var cmd tea.Cmd
		s.amount, cmd = s.amount.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *CheckoutScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, s.keys.Tab):
		s.setFocus((s.focus + 1) % fieldCount)
		return nil

	case key.Matches(msg, s.keys.ShiftTab):
		s.setFocus((s.focus + fieldCount - 1) % fieldCount)
		return nil

	case key.Matches(msg, s.keys.Pay):
		return s.activate()

	case key.Matches(msg, s.keys.Wallets):
		return router.Push(NewWalletsScreen(s.svc))

	case key.Matches(msg, s.keys.Disconnect):
		if !s.session.IsConnected() {
			return nil
		}
		return s.svc.DisconnectCmd()

	case key.Matches(msg, s.keys.AddMerchant):
		return router.Push(NewMerchantForm(s.svc))

	case key.Matches(msg, s.keys.Enter):
		if s.focus == fieldPay || s.focus == fieldAmount {
			return s.activate()
		}
		s.setFocus(s.focus + 1)
		return nil
	}

	switch s.focus {
	case fieldToken:
		if key.Matches(msg, s.keys.Left) {
			s.tokenIdx = (s.tokenIdx + len(s.tokens) - 1) % len(s.tokens)
			s.pushInputs()
		} else if key.Matches(msg, s.keys.Right) {
			s.tokenIdx = (s.tokenIdx + 1) % len(s.tokens)
			s.pushInputs()
		}
		return nil

	case fieldMerchant:
		// -1 входит в цикл: можно снять выбор
		n := len(s.merchants) + 1
		if key.Matches(msg, s.keys.Left) {
			s.merchantIdx = (s.merchantIdx+1+n-1)%n - 1
			s.pushInputs()
		} else if key.Matches(msg, s.keys.Right) {
			s.merchantIdx = (s.merchantIdx+1+1)%n - 1
			s.pushInputs()
		}
		return nil

	case fieldAmount:
		var cmd tea.Cmd
		s.amount, cmd = s.amount.Update(msg)
		s.applyAmount()
		return cmd
	}
	return nil
}

// applyAmount cleans what was typed and reformats the field with separators.
func (s *CheckoutScreen) applyAmount() {
	clean := token.CleanInput(s.amount.Value(), s.clean)
	if clean != s.clean {
		s.clean = clean
		s.pushInputs()
	}
	if formatted := token.FormatInput(clean); formatted != s.amount.Value() {
		s.amount.SetValue(formatted)
		s.amount.CursorEnd()
	}
}

func (s *CheckoutScreen) setFocus(f field) {
	s.focus = f % fieldCount
	if s.focus == fieldAmount {
		s.amount.Focus()
	} else {
		s.amount.Blur()
	}
}

func (s *CheckoutScreen) pushInputs() {
	_, selected := s.Merchant()
	s.svc.Quotes.Update(quote.Inputs{
		Token:            s.Token(),
		Amount:           s.clean,
		MerchantSelected: selected,
	})
}

func (s *CheckoutScreen) activate() tea.Cmd {
	b := s.Button()
	switch b.Action {
	case ui.ActionConnect:
		return router.Push(NewWalletsScreen(s.svc))

	case ui.ActionPay:
		if s.svc.Payments.InProgress() {
			return nil
		}
		m, _ := s.Merchant()
		dest, err := m.PublicKey()
		if err != nil {
			s.svc.Logger.Error("Selected merchant has an invalid address", zap.String("merchant", m.Name), zap.Error(err))
			return nil
		}
		tok := s.Token()
		raw, err := token.ToRaw(s.clean, tok.Decimals)
		if err != nil {
			return nil
		}
		s.paying = true
		s.last = nil
		return tea.Batch(
			s.svc.PayCmd(settlement.Payment{Token: tok, Amount: raw, Merchant: dest}),
			s.spinner.Tick,
		)
	}
	return nil
}

func (s *CheckoutScreen) View() string {
	var b strings.Builder

	b.WriteString(s.styles.Title.Render("Solana Checkout"))
	b.WriteString("\n")
	b.WriteString(s.walletLine())
	b.WriteString("\n\n")

	b.WriteString(s.panel(fieldToken, s.payView()))
	b.WriteString("\n")
	b.WriteString(s.panel(fieldMerchant, s.receiveView()))
	b.WriteString("\n\n")

	btn := s.Button()
	label := btn.Label
	if s.paying {
		label = s.spinner.View() + " " + label
	}
	if btn.Enabled {
		b.WriteString(s.styles.Button.Render(s.marker(fieldPay) + label))
	} else {
		b.WriteString(s.styles.ButtonIdle.Render(s.marker(fieldPay) + label))
	}

	if s.last != nil && s.last.Link != "" {
		b.WriteString("\n")
		b.WriteString(s.styles.Muted.Render("Last transaction: "))
		b.WriteString(s.styles.Link.Render(s.last.Link))
	}

	b.WriteString("\n")
	b.WriteString(s.help.View())
	return b.String()
}

func (s *CheckoutScreen) walletLine() string {
	switch {
	case s.session.IsConnected():
		return s.styles.Label.Render("Wallet: ") +
			s.styles.Value.Render(s.session.WalletName) + " " +
			s.styles.Muted.Render(merchant.FormatAddress(s.session.PublicKeyAddress))
	case s.session.IsConnecting():
		return s.styles.Label.Render("Wallet: ") + s.spinner.View() + " connecting"
	}
	return s.styles.Label.Render("Wallet: ") + s.styles.Muted.Render("not connected")
}

func (s *CheckoutScreen) payView() string {
	tok := s.Token()
	var b strings.Builder
	b.WriteString(s.styles.Label.Render("You pay"))
	b.WriteString("\n")
	b.WriteString(s.marker(fieldToken) + s.styles.Value.Render(fmt.Sprintf("‹ %s ›", tok.Symbol)))
	b.WriteString("  ")
	b.WriteString(s.marker(fieldAmount) + s.amount.View())
	if words := token.Words(s.clean); words != "" && s.clean != "" {
		b.WriteString("\n")
		b.WriteString(s.styles.Muted.Render(words + " " + tok.Name))
	}
	return b.String()
}

func (s *CheckoutScreen) receiveView() string {
	var b strings.Builder
	b.WriteString(s.styles.Label.Render("Merchant receives"))
	b.WriteString("\n")

	d := s.quote.Display
	switch s.quote.Status {
	case quote.StatusLoading:
		b.WriteString(s.spinner.View() + " fetching quote")
	case quote.StatusReady:
		b.WriteString(s.styles.Value.Render(d.Output + " " + token.Settlement.Symbol))
	case quote.StatusUnavailable:
		b.WriteString(s.styles.Muted.Render(quote.Unavailable))
	default:
		b.WriteString(s.styles.Muted.Render("0 " + token.Settlement.Symbol))
	}
	if s.quote.Status == quote.StatusReady || s.quote.Status == quote.StatusUnavailable {
		b.WriteString("\n")
		b.WriteString(s.styles.Muted.Render("Rate: " + d.Rate + "   Fee: " + d.Fee))
	}

	b.WriteString("\n\n")
	b.WriteString(s.marker(fieldMerchant))
	if m, ok := s.Merchant(); ok {
		b.WriteString(s.styles.Value.Render("‹ " + m.Name + " ›"))
		b.WriteString(" ")
		b.WriteString(s.styles.Muted.Render(merchant.FormatAddress(m.Address)))
	} else {
		b.WriteString(s.styles.Muted.Render("‹ " + ui.LabelSelectMerchant + " ›"))
	}
	return b.String()
}

func (s *CheckoutScreen) panel(group field, content string) string {
	focused := s.focus == group
	if group == fieldToken && s.focus == fieldAmount {
		focused = true
	}
	if focused {
		return s.styles.FocusedPanel.Render(content)
	}
	return s.styles.Panel.Render(content)
}

func (s *CheckoutScreen) marker(f field) string {
	if s.focus == f {
		return "▸ "
	}
	return "  "
}
