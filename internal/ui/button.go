package ui

import "github.com/rovshanmuradov/solana-checkout/internal/token"

const (
	LabelConnect        = "Connect Wallet"
	LabelConnecting     = "Connecting..."
	LabelEnterAmount    = "Enter an amount"
	LabelSelectMerchant = "Select a merchant"
	LabelPay            = "Proceed to Pay"
	LabelProcessing     = "Processing..."
)

// ButtonAction is what pressing the primary button does.
type ButtonAction int

const (
	ActionNone ButtonAction = iota
	ActionConnect
	ActionPay
)

// ButtonInput is the widget state the primary button depends on.
type ButtonInput struct {
	Connected        bool
	Connecting       bool
	Paying           bool
	MerchantSelected bool
	Amount           string
}

// Button is the derived primary button.
type Button struct {
	Label   string
	Enabled bool
	Action  ButtonAction
}

// PayButton derives the primary button. A disconnected wallet always wins,
// then a missing or zero amount, then a missing merchant.
func PayButton(in ButtonInput) Button {
	switch {
	case in.Paying:
		return Button{Label: LabelProcessing}
	case in.Connecting:
		return Button{Label: LabelConnecting}
	case !in.Connected:
		return Button{Label: LabelConnect, Enabled: true, Action: ActionConnect}
	}

	if _, err := token.ParseAmount(in.Amount); err != nil {
		return Button{Label: LabelEnterAmount}
	}
	if !in.MerchantSelected {
		return Button{Label: LabelSelectMerchant}
	}
	return Button{Label: LabelPay, Enabled: true, Action: ActionPay}
}
