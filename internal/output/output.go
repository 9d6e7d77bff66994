// Package output provides styled terminal output helpers (success, error,
// warning, ledger formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/marcus/fin/internal/dateparse"
	"github.com/marcus/fin/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	typeStyles   = map[models.EntryType]lipgloss.Style{
		models.EntryExpense: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		models.EntryIncome:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// TermWidth returns the terminal width, falling back to 80 when stdout
// is not a terminal.
func TermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// FormatType formats an entry type with color
func FormatType(t models.EntryType) string {
	style, ok := typeStyles[t]
	if !ok {
		return string(t)
	}
	return style.Render(fmt.Sprintf("[%s]", t))
}

// FormatAmount renders a signed amount: expenses negative, income positive.
func FormatAmount(t models.EntryType, amount float64) string {
	if t == models.EntryExpense {
		return fmt.Sprintf("-%.2f", amount)
	}
	return fmt.Sprintf("+%.2f", amount)
}

// PendingMark returns a marker for entities with unsynced local edits.
func PendingMark(pending bool) string {
	if !pending {
		return ""
	}
	return pendingStyle.Render(" *")
}

// FormatCategoryLine formats a category in list output.
func FormatCategoryLine(c models.Category, pending bool) string {
	var parts []string
	parts = append(parts, titleStyle.Render(c.ID))
	parts = append(parts, FormatType(c.Type))
	parts = append(parts, c.Name)
	parts = append(parts, subtleStyle.Render(fmt.Sprintf("v%d", c.Version)))
	return strings.Join(parts, "  ") + PendingMark(pending)
}

// FormatTransactionLine formats a transaction in list output.
func FormatTransactionLine(t models.Transaction, categoryName string, pending bool) string {
	var parts []string
	parts = append(parts, subtleStyle.Render(dateparse.FormatDate(t.Date)))
	parts = append(parts, titleStyle.Render(t.ID))
	parts = append(parts, FormatAmount(t.Type, t.Amount))
	if categoryName != "" {
		parts = append(parts, categoryName)
	}
	if t.Note != "" {
		parts = append(parts, subtleStyle.Render(truncate(t.Note, TermWidth()/3)))
	}
	return strings.Join(parts, "  ") + PendingMark(pending)
}

// SectionHeader returns a formatted section header for CLI output
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
