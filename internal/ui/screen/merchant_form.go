package screen

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/merchant"
	"github.com/rovshanmuradov/solana-checkout/internal/ui"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/component"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/router"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/style"
)

// MerchantForm adds a merchant by name and USDC account address.
type MerchantForm struct {
	svc    *ui.Services
	keys   ui.KeyMap
	styles style.Styles
	help   *component.HelpBar

	inputs     []textinput.Model
	focusIndex int
	submitting bool
	err        string

	width  int
	height int
}

func NewMerchantForm(svc *ui.Services) *MerchantForm {
	name := textinput.New()
	name.Placeholder = "Merchant name"
	name.CharLimit = 64
	name.Focus()

	address := textinput.New()
	address.Placeholder = "USDC account address"
	address.CharLimit = merchant.AddressLength

	f := &MerchantForm{
		svc:    svc,
		keys:   ui.DefaultKeyMap(),
		styles: style.DefaultStyles(),
		help:   component.NewHelpBar(),
		inputs: []textinput.Model{name, address},
	}
	f.help.SetKeyBindings(f.keys.FormHelp())
	return f
}

func (f *MerchantForm) Init() tea.Cmd { return textinput.Blink }

func (f *MerchantForm) SetSize(width, height int) {
	f.width = width
	f.height = height
	f.help.SetWidth(width)
}

func (f *MerchantForm) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.MerchantAddedMsg:
		if !f.submitting {
			return f, nil
		}
		f.submitting = false
		if msg.Err != nil {
			f.err = apperr.UserMessage(msg.Err)
			return f, nil
		}
		return f, router.Pop()

	case tea.KeyMsg:
		if f.submitting {
			return f, nil
		}
		switch {
		case key.Matches(msg, f.keys.Tab), key.Matches(msg, f.keys.Down):
			f.setFocus((f.focusIndex + 1) % len(f.inputs))
			return f, nil
		case key.Matches(msg, f.keys.ShiftTab), key.Matches(msg, f.keys.Up):
			f.setFocus((f.focusIndex + len(f.inputs) - 1) % len(f.inputs))
			return f, nil
		case key.Matches(msg, f.keys.Enter):
			if f.focusIndex < len(f.inputs)-1 {
				f.setFocus(f.focusIndex + 1)
				return f, nil
			}
			f.submitting = true
			f.err = ""
			return f, f.svc.AddMerchantCmd(
				strings.TrimSpace(f.inputs[0].Value()),
				strings.TrimSpace(f.inputs[1].Value()),
			)
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focusIndex], cmd = f.inputs[f.focusIndex].Update(msg)
	return f, cmd
}

func (f *MerchantForm) setFocus(i int) {
	f.focusIndex = i
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
}

func (f *MerchantForm) View() string {
	var b strings.Builder
	b.WriteString(f.styles.Title.Render("Add merchant"))
	b.WriteString("\n")

	labels := []string{"Name", "USDC account"}
	var body strings.Builder
	for i, in := range f.inputs {
		body.WriteString(f.styles.Label.Render(labels[i]))
		body.WriteString("\n")
		body.WriteString(in.View())
		if i < len(f.inputs)-1 {
			body.WriteString("\n\n")
		}
	}
	b.WriteString(f.styles.FocusedPanel.Render(body.String()))

	if f.submitting {
		b.WriteString("\n")
		b.WriteString(f.styles.Muted.Render("Saving..."))
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(f.styles.Error.Render(f.err))
	}
	b.WriteString("\n")
	b.WriteString(f.help.View())
	return b.String()
}
