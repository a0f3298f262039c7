package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// Palette shared with the tray icons.
var (
	colorConnected  = lipgloss.Color("#2ec27e")
	colorConnecting = lipgloss.Color("#e5a50a")
	colorError      = lipgloss.Color("#e01b24")
	colorAccent     = lipgloss.Color("#3584e4")
	colorMuted      = lipgloss.AdaptiveColor{Light: "#5e5c64", Dark: "#9a9996"}
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1).
			Width(common.SectionWidth)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	domainStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	statusStyles = map[vpn.State]lipgloss.Style{
		vpn.StateUp:            lipgloss.NewStyle().Bold(true).Foreground(colorConnected),
		vpn.StateConnecting:    lipgloss.NewStyle().Foreground(colorConnecting),
		vpn.StateDisconnecting: lipgloss.NewStyle().Foreground(colorConnecting),
		vpn.StateFailed:        lipgloss.NewStyle().Foreground(colorError),
		vpn.StateNoPolicyAgent: lipgloss.NewStyle().Foreground(colorError),
	}

	defaultStatusStyle = lipgloss.NewStyle().Faint(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	messageStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(colorMuted)

	trafficStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Foreground(lipgloss.Color("#ffffff")).
			Background(colorAccent)

	busyButtonStyle = buttonStyle.
			Background(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			MarginTop(1)
)

func statusStyle(s vpn.State) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return defaultStatusStyle
}
