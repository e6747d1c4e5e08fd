package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Color styles for terminal output
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

// Writer is where human-readable output goes. Tests replace it.
var Writer io.Writer = os.Stdout

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Fprint(Writer, successStyle.Render("✓ "))
	fmt.Fprintf(Writer, format+"\n", args...)
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Fprint(Writer, warningStyle.Render("⚠ "))
	fmt.Fprintf(Writer, format+"\n", args...)
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Fprint(Writer, errorStyle.Render("✗ "))
	fmt.Fprintf(Writer, format+"\n", args...)
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Fprint(Writer, infoStyle.Render("ℹ "))
	fmt.Fprintf(Writer, format+"\n", args...)
}

// Muted prints a muted message
func Muted(format string, args ...any) {
	fmt.Fprintln(Writer, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Section prints a section header
func Section(title string) {
	fmt.Fprintln(Writer)
	fmt.Fprintln(Writer, primaryStyle.Render(title))
	fmt.Fprintln(Writer, mutedStyle.Render(strings.Repeat("═", lipgloss.Width(title))))
	fmt.Fprintln(Writer)
}

// JSON writes v as indented JSON.
func JSON(v any) error {
	enc := json.NewEncoder(Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under a header line, columns aligned.
func Table(header []string, rows [][]string) {
	w := tabwriter.NewWriter(Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h))
	}
	_, _ = fmt.Fprintln(w, strings.Join(rule, "\t"))
	for _, r := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	_ = w.Flush()
}

// OrNone returns s, or a muted placeholder when s is empty.
func OrNone(s string) string {
	if s == "" {
		return mutedStyle.Render("-")
	}
	return s
}
