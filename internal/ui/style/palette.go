package style

import "github.com/charmbracelet/lipgloss"

// Color palette of the checkout widget
var (
	Orange = lipgloss.Color("#FF6B47") // Primary action
	Cyan   = lipgloss.Color("#00E5FF") // Focus highlight
	Yellow = lipgloss.Color("#FFB500") // Warnings
	Green  = lipgloss.Color("#2AFFAA") // Success
	Red    = lipgloss.Color("#FF5555") // Errors
	Blue   = lipgloss.Color("#3B82F6") // Info / links

	// Base colors
	Base03 = lipgloss.Color("#1A1B1F") // Background
	Base02 = lipgloss.Color("#1E1F24") // Panel background
	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
	Base1  = lipgloss.Color("#A1A1AA") // Secondary text
)

// Palette provides a centralized color management
type Palette struct {
	Primary lipgloss.Color
	Focus   lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Info    lipgloss.Color

	Background    lipgloss.Color
	Panel         lipgloss.Color
	Text          lipgloss.Color
	TextMuted     lipgloss.Color
	TextSecondary lipgloss.Color
}

// DefaultPalette returns the default color palette
func DefaultPalette() Palette {
	return Palette{
		Primary: Orange,
		Focus:   Cyan,
		Success: Green,
		Error:   Red,
		Warning: Yellow,
		Info:    Blue,

		Background:    Base03,
		Panel:         Base02,
		Text:          Base2,
		TextMuted:     Base01,
		TextSecondary: Base1,
	}
}

// Styles are the lipgloss styles shared by every screen.
type Styles struct {
	Title        lipgloss.Style
	Panel        lipgloss.Style
	FocusedPanel lipgloss.Style
	Label        lipgloss.Style
	Value        lipgloss.Style
	Muted        lipgloss.Style
	Button       lipgloss.Style
	ButtonIdle   lipgloss.Style
	Success      lipgloss.Style
	Error        lipgloss.Style
	Info         lipgloss.Style
	Link         lipgloss.Style
}

// DefaultStyles builds Styles from the default palette.
func DefaultStyles() Styles {
	p := DefaultPalette()
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.TextMuted).
		Padding(0, 2).
		Width(52)

	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(p.Primary).
			Bold(true).
			Margin(1, 0),
		Panel:        panel,
		FocusedPanel: panel.BorderForeground(p.Focus),
		Label:        lipgloss.NewStyle().Foreground(p.TextSecondary),
		Value:        lipgloss.NewStyle().Foreground(p.Text).Bold(true),
		Muted:        lipgloss.NewStyle().Foreground(p.TextMuted),
		Button: lipgloss.NewStyle().
			Foreground(p.Text).
			Background(p.Primary).
			Bold(true).
			Padding(0, 2).
			Width(56).
			Align(lipgloss.Center),
		ButtonIdle: lipgloss.NewStyle().
			Foreground(p.Primary).
			Padding(0, 2).
			Width(56).
			Align(lipgloss.Center),
		Success: lipgloss.NewStyle().Foreground(p.Success).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(p.Info).Bold(true),
		Link:    lipgloss.NewStyle().Foreground(p.Info).Underline(true),
	}
}
