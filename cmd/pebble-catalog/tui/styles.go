package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorText    = lipgloss.Color("#F3F4F6")
	colorBorder  = lipgloss.Color("#4B5563")

	// Title styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	// Status styles
	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// Box styles
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	// Button styles
	activeButtonStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(colorPrimary).
				Padding(0, 3).
				Bold(true)

	inactiveButtonStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Background(lipgloss.Color("#1F2937")).
				Padding(0, 3)

	// Help styles
	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	// Error styles
	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDanger).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

// tableStyles returns the product table styles.
func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorPrimary)
	s.Selected = s.Selected.
		Foreground(colorText).
		Background(colorPrimary).
		Bold(true)
	return s
}

// FormatKey formats a help key
func FormatKey(key, description string) string {
	return helpKeyStyle.Render(key) + " " + mutedStyle.Render(description)
}
