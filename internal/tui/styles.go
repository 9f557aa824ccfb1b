package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cuivienor/carbon/internal/model"
)

// Colors
var (
	colorPrimary = lipgloss.Color("39")  // Blue
	colorSuccess = lipgloss.Color("42")  // Green
	colorWarning = lipgloss.Color("214") // Orange
	colorError   = lipgloss.Color("196") // Red
	colorMuted   = lipgloss.Color("240") // Dark gray
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	statusComplete = lipgloss.NewStyle().
			Foreground(colorSuccess).
			SetString("✓")

	statusActive = lipgloss.NewStyle().
			Foreground(colorWarning).
			SetString("●")

	statusFailed = lipgloss.NewStyle().
			Foreground(colorError).
			SetString("✗")

	statusQueued = lipgloss.NewStyle().
			Foreground(colorMuted).
			SetString("○")

	barFull = lipgloss.NewStyle().
		Foreground(colorSuccess).
		SetString("█")

	barEmpty = lipgloss.NewStyle().
			Foreground(colorMuted).
			SetString("░")

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)

// StatusIcon returns the icon for a job status
func StatusIcon(status model.JobStatus) string {
	switch {
	case status == model.JobStatusComplete:
		return statusComplete.String()
	case status == model.JobStatusFailed:
		return statusFailed.String()
	case status.IsActive():
		return statusActive.String()
	default:
		return statusQueued.String()
	}
}

// RenderBar creates a progress bar for a percentage in [0,100]
func RenderBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	var b strings.Builder
	for i := 0; i < filled; i++ {
		b.WriteString(barFull.String())
	}
	for i := filled; i < width; i++ {
		b.WriteString(barEmpty.String())
	}
	return b.String()
}
