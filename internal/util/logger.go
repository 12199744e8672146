package util

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger is the process-wide logger. Nil until InitLogger runs; the helpers
// below are no-ops while it is nil.
var Logger *log.Logger

var prefixStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(lipgloss.Color("#6366F1")).
	Bold(true).
	Padding(0, 1).
	MarginRight(1)

// InitLogger initializes the logger on stderr
func InitLogger() {
	InitLoggerWithWriter(os.Stderr)
}

// InitLoggerWithWriter initializes the logger on w. Callers and timestamps
// are reported only in debug mode.
func InitLoggerWithWriter(w io.Writer) {
	level := log.InfoLevel
	if IsDebug {
		level = log.DebugLevel
	}

	Logger = log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportCaller:    IsDebug,
		ReportTimestamp: IsDebug,
		TimeFormat:      "15:04:05",
		Prefix:          prefixStyle.Render("Gostream"),
	})
	Logger.SetColorProfile(termenv.TrueColor)
}

func logAt(level log.Level, msg any, keyvals []any) {
	if Logger == nil {
		return
	}
	Logger.Log(level, fmt.Sprint(msg), keyvals...)
}

// Debug logs only when debug mode is on
func Debug(msg any, keyvals ...any) {
	if IsDebug {
		logAt(log.DebugLevel, msg, keyvals)
	}
}

// Info logs at info level
func Info(msg any, keyvals ...any) {
	logAt(log.InfoLevel, msg, keyvals)
}

// Warn logs at warn level
func Warn(msg any, keyvals ...any) {
	logAt(log.WarnLevel, msg, keyvals)
}

// Error logs at error level
func Error(msg any, keyvals ...any) {
	logAt(log.ErrorLevel, msg, keyvals)
}
