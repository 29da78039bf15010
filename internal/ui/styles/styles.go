// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#CCCCCC"} // Main/primary text
	TextSecondaryColor   = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#BBBBBB"} // Field labels
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Hints, help text, footers
	TextPlaceholderColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#777777"} // Input placeholders

	// Semantic color names - Border
	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Unfocused borders
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#3498DB"} // Focused field borders

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Success states
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"} // Warnings
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Errors

	// Selection indicator color (used for the arrows around cycling fields)
	SelectionIndicatorColor = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}

	// Selection indicator style
	SelectionIndicatorStyle = lipgloss.NewStyle().Bold(true).Foreground(SelectionIndicatorColor)

	// Greeting banner above the form
	GreetingStyle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)

	// Field labels in the login form
	LabelStyle = lipgloss.NewStyle().Foreground(TextSecondaryColor)

	// Auth prompt line
	PromptStyle      = lipgloss.NewStyle().Foreground(TextPrimaryColor)
	PromptErrorStyle = lipgloss.NewStyle().Foreground(StatusErrorColor)

	// Notice lines under the form
	NoticeInfoStyle  = lipgloss.NewStyle().Foreground(TextMutedColor)
	NoticeWarnStyle  = lipgloss.NewStyle().Foreground(StatusWarningColor)
	NoticeErrorStyle = lipgloss.NewStyle().Foreground(StatusErrorColor)

	// Footer help text
	HelpStyle = lipgloss.NewStyle().Foreground(TextMutedColor)

	// The login form box
	FormBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderDefaultColor).
			Padding(1, 2)
)
