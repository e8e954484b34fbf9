package tui

import "github.com/charmbracelet/lipgloss"

// Dendrite palette: green for a healthy bound device, amber while
// resolving, red when offline.
var (
	colorLeaf   = lipgloss.Color("#8FD694")
	colorStem   = lipgloss.Color("#5B8C5A")
	colorBark   = lipgloss.Color("#3E4A3E")
	colorText   = lipgloss.Color("#E0E0E0")
	colorAmber  = lipgloss.Color("#E8B339")
	colorRed    = lipgloss.Color("#E05C5C")
	colorMuted  = lipgloss.Color("#6c757d")
)

var (
	styleTitle = lipgloss.NewStyle().Foreground(colorLeaf).Bold(true)

	styleSubtitle = lipgloss.NewStyle().Foreground(colorStem).Italic(true)

	styleStatusOnline  = lipgloss.NewStyle().Foreground(colorLeaf).Bold(true)
	styleStatusOffline = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleStatusPending = lipgloss.NewStyle().Foreground(colorAmber).Bold(true)

	styleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBark).
			Padding(0, 1).
			Margin(0, 1)

	styleTopBar = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorBark).
			Padding(0, 1).
			MarginBottom(1)

	styleMenuItem = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)

	styleMenuItemActive = lipgloss.NewStyle().
				Foreground(colorBark).
				Background(colorLeaf).
				Bold(true).
				Padding(0, 1)

	styleMenuKey = lipgloss.NewStyle().Foreground(colorMuted).Faint(true)

	styleApp = lipgloss.NewStyle().Margin(1, 2)

	styleErrBanner = lipgloss.NewStyle().
			Foreground(colorRed).
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorRed).
			Padding(0, 1)
)

func statusStyle(connectivity string) lipgloss.Style {
	switch connectivity {
	case "online":
		return styleStatusOnline
	case "offline":
		return styleStatusOffline
	default:
		return styleStatusPending
	}
}
