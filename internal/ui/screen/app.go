package screen

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/solana-checkout/internal/ui"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/component"
	"github.com/rovshanmuradov/solana-checkout/internal/ui/router"
)

// App is the root tea.Model: a screen router plus the notification area.
type App struct {
	svc     *ui.Services
	updates *ui.UpdateSender
	router  *router.Router
	keys    ui.KeyMap

	width  int
	height int
}

func NewApp(svc *ui.Services, updates *ui.UpdateSender) *App {
	return &App{
		svc:     svc,
		updates: updates,
		router:  router.New(NewCheckoutScreen(svc)),
		keys:    ui.DefaultKeyMap(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.router.Init(), a.updates.Listen(), ui.Tick())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Dismiss):
			if active := a.svc.Notices.Active(); len(active) > 0 {
				a.svc.Notices.Dismiss(active[0].ID)
			}
			return a, nil
		}
		return a, a.router.Update(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, a.router.Update(msg)

	case ui.NotificationMsg:
		_ = a.svc.Notices.Handle(a.svc.Ctx, msg.Notification)
		return a, a.updates.Listen()

	case ui.QuoteMsg, ui.SessionMsg:
		return a, tea.Batch(a.router.Update(msg), a.updates.Listen())

	case ui.TickMsg:
		// Active() сам выбрасывает истёкшие уведомления при рендере
		return a, ui.Tick()
	}

	return a, a.router.Update(msg)
}

func (a *App) View() string {
	notices := component.Notices(a.svc.Notices.Active(), a.width)
	if notices == "" {
		return a.router.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, a.router.View(), notices)
}

// Router exposes the navigation stack for tests.
func (a *App) Router() *router.Router {
	return a.router
}
