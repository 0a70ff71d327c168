package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/solana-checkout/internal/merchant"
	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/session"
	"github.com/rovshanmuradov/solana-checkout/internal/settlement"
)

// Tea message types for UI communication

// QuoteMsg carries a new quote controller state
type QuoteMsg struct {
	State quote.State
}

// SessionMsg carries a new wallet session snapshot
type SessionMsg struct {
	Snapshot session.Snapshot
}

// NotificationMsg carries a notification published on the bus
type NotificationMsg struct {
	Notification notify.Notification
}

// PaymentDoneMsg is sent when a payment attempt reaches a terminal state
type PaymentDoneMsg struct {
	Result *settlement.Result
	Err    error
}

// ConnectDoneMsg is sent when a connect or disconnect call returns
type ConnectDoneMsg struct {
	Wallet string
	Err    error
}

// MerchantAddedMsg is sent when the merchant form submission returns
type MerchantAddedMsg struct {
	Merchant merchant.Merchant
	Err      error
}

// TickMsg drives notification expiry
type TickMsg time.Time

// TickInterval is how often expired notifications are swept.
const TickInterval = time.Second

// Tick schedules the next TickMsg.
func Tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
