package tui

import "github.com/charmbracelet/lipgloss"

// Field palette
var (
	ColorBgHighlight = lipgloss.Color("#2F3B2F")

	ColorFgPrimary = lipgloss.Color("#D8DEC8")
	ColorFgMuted   = lipgloss.Color("#7C8570")

	ColorGreen  = lipgloss.Color("#8FBF5A")
	ColorYellow = lipgloss.Color("#E0B450")
	ColorRed    = lipgloss.Color("#D9604C")
	ColorBlue   = lipgloss.Color("#6FA8C8")
	ColorBrown  = lipgloss.Color("#A67C52")

	ColorBorder = lipgloss.Color("#4A5242")
)

var (
	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)

	DrawerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBrown).
			Padding(1, 2)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	SelectedStyle = lipgloss.NewStyle().
			Background(ColorBgHighlight).
			Foreground(ColorFgPrimary).
			Bold(true).
			Padding(0, 1)

	ItemStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary).
			Padding(0, 1)

	TaskPendingStyle    = lipgloss.NewStyle().Foreground(ColorFgMuted)
	TaskInProgressStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	TaskCompleteStyle   = lipgloss.NewStyle().Foreground(ColorGreen)

	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	DimStyle     = lipgloss.NewStyle().Foreground(ColorFgMuted)
)
