package component

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/solana-checkout/internal/notify"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/style"
)

// Notices renders the notification status area, newest last.
func Notices(items []notify.Notification, width int) string {
	if len(items) == 0 {
		return ""
	}
	s := style.DefaultStyles()
	box := lipgloss.NewStyle().Padding(0, 1)
	if width > 0 {
		box = box.Width(width)
	}

	lines := make([]string, 0, len(items))
	for _, n := range items {
		var title string
		switch n.Kind {
		case notify.KindSuccess:
			title = s.Success.Render("✓ " + n.Title)
		case notify.KindError:
			title = s.Error.Render("✗ " + n.Title)
		default:
			title = s.Info.Render("• " + n.Title)
		}

		line := title
		if n.Message != "" {
			line += " " + s.Muted.Render(n.Message)
		}
		if n.Link != "" {
			line += "\n  " + s.Link.Render(n.Link)
		}
		lines = append(lines, line)
	}
	return box.Render(strings.Join(lines, "\n"))
}
