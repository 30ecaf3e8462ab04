// Package styles provides the colour palette and lipgloss styles for the
// chat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the chat palette. Each colour is named after what it marks.
type Theme struct {
	// Assistant marks the assistant's turns and the header.
	Assistant lipgloss.Color

	// User marks the user's questions.
	User lipgloss.Color

	// Text is the answer body.
	Text lipgloss.Color

	// Dim is used for hints, placeholders and the status bar.
	Dim lipgloss.Color

	// Citation marks the source list under an answer.
	Citation lipgloss.Color

	// Error marks failed answers.
	Error lipgloss.Color

	// Border outlines the question box.
	Border lipgloss.Color

	// Bar is the status bar background.
	Bar lipgloss.Color
}

// DefaultTheme returns the default palette.
func DefaultTheme() *Theme {
	return &Theme{
		Assistant: lipgloss.Color("#7C3AED"),
		User:      lipgloss.Color("#06B6D4"),
		Text:      lipgloss.Color("#CDD6F4"),
		Dim:       lipgloss.Color("#6C7086"),
		Citation:  lipgloss.Color("#A6E3A1"),
		Error:     lipgloss.Color("#F38BA8"),
		Border:    lipgloss.Color("#45475A"),
		Bar:       lipgloss.Color("#181825"),
	}
}

// Styles holds the rendered styles for one theme.
type Styles struct {
	theme *Theme

	Title      lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Question   lipgloss.Style
	Answer     lipgloss.Style
	Source     lipgloss.Style
	Error      lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
}

// NewStyles builds styles from a theme. A nil theme means DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	fg := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}

	return &Styles{
		theme:    theme,
		Title:    fg(theme.Assistant).Bold(true),
		Normal:   fg(theme.Text),
		Muted:    fg(theme.Dim),
		Question: fg(theme.User).Bold(true),
		Answer:   fg(theme.Assistant).Bold(true),
		Source:   fg(theme.Citation),
		Error:    fg(theme.Error),
		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		StatusBar: fg(theme.Dim).Background(theme.Bar).Padding(0, 1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
