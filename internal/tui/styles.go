// Package tui renders deploy progress and history for the terminal.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	ColorPrimary   = lipgloss.Color("39")  // Blue
	ColorSecondary = lipgloss.Color("245") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorDanger    = lipgloss.Color("196") // Red
	ColorMuted     = lipgloss.Color("240") // Dark gray
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	NormalStyle = lipgloss.NewStyle()

	// Stage number prefix, e.g. "(3)"
	StageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)

	SkippedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StatusRunning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	LabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary).
			Width(14)

	ValueStyle = lipgloss.NewStyle()
)

// GetStatusStyle returns the style for a deployment history status.
func GetStatusStyle(status string) lipgloss.Style {
	switch status {
	case "succeeded":
		return SuccessStyle
	case "failed":
		return ErrorStyle
	case "deploying":
		return StatusRunning
	case "interrupted":
		return SkippedStyle
	default:
		return NormalStyle
	}
}

// GetStatusIcon returns an icon for the given status.
func GetStatusIcon(status string) string {
	switch status {
	case "succeeded":
		return "●"
	case "failed":
		return "✗"
	case "deploying":
		return "◐"
	case "skipped":
		return "○"
	case "interrupted":
		return "⚠"
	default:
		return "?"
	}
}
