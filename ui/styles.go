package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/vpn-settings/vpn"
)

// Palette, matching the desktop theme colors.
var (
	colorConnected  = lipgloss.Color("#2ec27e")
	colorConnecting = lipgloss.Color("#e5a50a")
	colorError      = lipgloss.Color("#e01b24")
	colorAccent     = lipgloss.Color("#3584e4")
	colorMuted      = lipgloss.AdaptiveColor{Light: "#77767b", Dark: "#9a9996"}
)

// Shared text styles.
var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorConnected)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	MutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#ffffff")).Background(colorAccent)
	helpStyle  = MutedStyle.Padding(0, 1)
)

// StateStyle colors a connection state by how active it is.
func StateStyle(state vpn.ConnectionState) lipgloss.Style {
	switch state {
	case vpn.StateReady:
		return lipgloss.NewStyle().Foreground(colorConnected)
	case vpn.StateConfiguration:
		return lipgloss.NewStyle().Foreground(colorConnecting)
	case vpn.StateFailure:
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return MutedStyle
	}
}
