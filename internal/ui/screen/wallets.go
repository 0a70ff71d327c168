package screen

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/solana-checkout/internal/apperr"
	"github.com/rovshanmuradov/solana-checkout/internal/ui"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/component"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/router"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/style"
	"github.com/rovshanmuradov/solana-checkout/internal/wallet"
)

// WalletsScreen is the connect-wallet sheet. Installed wallets can be
// selected; the others are listed with their download link.
type WalletsScreen struct {
	svc    *ui.Services
	keys   ui.KeyMap
	styles style.Styles
	help   *component.HelpBar

	detection  wallet.Detection
	cursor     int
	connecting string
	err        string

	width  int
	height int
}

func NewWalletsScreen(svc *ui.Services) *WalletsScreen {
	s := &WalletsScreen{
		svc:       svc,
		keys:      ui.DefaultKeyMap(),
		styles:    style.DefaultStyles(),
		help:      component.NewHelpBar(),
		detection: wallet.Detect(svc.Namespace),
	}
	s.help.SetKeyBindings(s.keys.SheetHelp())
	return s
}

func (s *WalletsScreen) Init() tea.Cmd { return nil }

func (s *WalletsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.help.SetWidth(width)
}

func (s *WalletsScreen) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.ConnectDoneMsg:
		if s.connecting == "" || msg.Wallet != s.connecting {
			return s, nil
		}
		s.connecting = ""
		if msg.Err != nil {
			s.err = apperr.UserMessage(msg.Err)
			return s, nil
		}
		return s, router.Pop()

	case tea.KeyMsg:
		if s.connecting != "" {
			return s, nil
		}
		installed := s.detection.Installed
		switch {
		case key.Matches(msg, s.keys.Up):
			if s.cursor > 0 {
				s.cursor--
			}
		case key.Matches(msg, s.keys.Down):
			if s.cursor < len(installed)-1 {
				s.cursor++
			}
		case key.Matches(msg, s.keys.Enter):
			if len(installed) == 0 {
				return s, nil
			}
			s.connecting = installed[s.cursor].Name
			s.err = ""
			return s, s.svc.ConnectCmd(s.connecting)
		}
	}
	return s, nil
}

func (s *WalletsScreen) View() string {
	var b strings.Builder
	b.WriteString(s.styles.Title.Render("Connect a wallet"))
	b.WriteString("\n")

	var list strings.Builder
	list.WriteString(s.styles.Label.Render("Installed"))
	list.WriteString("\n")
	if len(s.detection.Installed) == 0 {
		list.WriteString(s.styles.Muted.Render("  No wallet detected"))
		list.WriteString("\n")
	}
	for i, brand := range s.detection.Installed {
		line := "  " + brand.Name
		if i == s.cursor {
			line = s.styles.Value.Render("▸ " + brand.Name)
		}
		if brand.Name == s.connecting {
			line += s.styles.Muted.Render("  connecting...")
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	if len(s.detection.Recommended) > 0 {
		list.WriteString("\n")
		list.WriteString(s.styles.Label.Render("Recommended"))
		list.WriteString("\n")
		for _, brand := range s.detection.Recommended {
			list.WriteString("  " + brand.Name + " ")
			list.WriteString(s.styles.Link.Render(brand.InstallURL))
			list.WriteString("\n")
		}
	}
	b.WriteString(s.styles.FocusedPanel.Render(strings.TrimRight(list.String(), "\n")))

	if s.err != "" {
		b.WriteString("\n")
		b.WriteString(s.styles.Error.Render(s.err))
	}
	b.WriteString("\n")
	b.WriteString(s.help.View())
	return b.String()
}
