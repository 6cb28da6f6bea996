package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lamim/paperforge/pkg/models"
)

var (
	primaryColor   = lipgloss.Color("#5F87AF") // Slate blue accent
	secondaryColor = lipgloss.Color("#666666") // Gray for secondary text
	successColor   = lipgloss.Color("#87AF87")
	warningColor   = lipgloss.Color("#D7AF5F")
	errorColor     = lipgloss.Color("#AF5F5F")

	// TitleStyle for headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// SubtleStyle for hints and help text
	SubtleStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	// SelectedStyle for the highlighted row
	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// BoxStyle for the edit panel
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	statusStyles = map[models.SectionStatus]lipgloss.Style{
		models.StatusPending:    lipgloss.NewStyle().Foreground(secondaryColor),
		models.StatusInProgress: lipgloss.NewStyle().Foreground(warningColor),
		models.StatusCompleted:  lipgloss.NewStyle().Foreground(successColor),
		models.StatusFailed:     lipgloss.NewStyle().Foreground(errorColor),
	}
)

// StatusBadge renders a fixed-width, coloured status label
func StatusBadge(status models.SectionStatus) string {
	label := fmt.Sprintf("%-11s", status)
	style, ok := statusStyles[status]
	if !ok {
		return label
	}
	return style.Render(label)
}

// SectionTable renders the section list with index, status, id and title.
// Failed sections show their error on the following line.
func SectionTable(list []models.Section) string {
	if len(list) == 0 {
		return SubtleStyle.Render("(no sections)")
	}

	var b strings.Builder
	for i, s := range list {
		fmt.Fprintf(&b, "%3d  %s  %s  %s\n", i+1, StatusBadge(s.Status), SubtleStyle.Render(shortID(s.ID)), s.Title)
		if s.Status == models.StatusFailed && s.Error != "" {
			fmt.Fprintf(&b, "     %s\n", ErrorStyle.Render("└ "+s.Error))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return fmt.Sprintf("%-8s", id)
}
