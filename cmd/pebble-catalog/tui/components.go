package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmResultMsg carries the answer of a ConfirmationDialog.
type confirmResultMsg struct {
	confirmed bool
}

// ConfirmationDialog represents a yes/no confirmation dialog
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
}

// NewConfirmationDialog creates a new confirmation dialog
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{
		Title:   title,
		Message: message,
	}
}

// Update handles confirmation dialog updates. Enter answers with the
// selected button, esc and q answer no.
func (d *ConfirmationDialog) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "left", "h", "y":
		d.YesSelected = true
		if key.String() == "y" {
			return answer(true)
		}
	case "right", "l":
		d.YesSelected = false
	case "enter":
		return answer(d.YesSelected)
	case "esc", "q", "n":
		return answer(false)
	}
	return nil
}

func answer(yes bool) tea.Cmd {
	return func() tea.Msg { return confirmResultMsg{confirmed: yes} }
}

// View renders the confirmation dialog
func (d ConfirmationDialog) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yesButton := inactiveButtonStyle.Render("Yes")
	noButton := inactiveButtonStyle.Render("No")

	if d.YesSelected {
		yesButton = activeButtonStyle.Render("Yes")
	} else {
		noButton = activeButtonStyle.Render("No")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yesButton, "  ", noButton))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "navigate") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc/q", "cancel")))

	return boxStyle.Render(b.String())
}

// LogView keeps the most recent status lines.
type LogView struct {
	Logs   []string
	MaxLen int
}

// NewLogView creates a new log view
func NewLogView(maxLen int) LogView {
	return LogView{MaxLen: maxLen}
}

// AddLog adds a log entry, dropping the oldest beyond MaxLen.
func (l *LogView) AddLog(entry string) {
	l.Logs = append(l.Logs, entry)
	if len(l.Logs) > l.MaxLen {
		l.Logs = l.Logs[1:]
	}
}

// View renders the log view
func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, log := range l.Logs {
		b.WriteString(mutedStyle.Render("• "))
		b.WriteString(log)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
