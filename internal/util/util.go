package util

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// IsDebug enables debug logging and verbose error output
var IsDebug bool

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// ErrorHandler returns a stylized error message.
// In debug mode the full %+v chain (including pkg/errors stack traces) is shown.
func ErrorHandler(err error) string {
	if err == nil {
		return ""
	}
	if IsDebug {
		styledHeader := errorStyle.Render("DEBUG ERROR")
		styledError := debugErrorStyle.Render(fmt.Sprintf("%+v", err))
		return fmt.Sprintf("%s\n%s", styledHeader, styledError)
	}

	styledError := errorStyle.Render(fmt.Sprintf("x %v", err))
	styledHint := warningStyle.Render("run the program with --debug to see details")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// Success renders a success line
func Success(msg string) string {
	return successStyle.Render(msg)
}

// Warning renders a warning line
func Warning(msg string) string {
	return warningStyle.Render(msg)
}
