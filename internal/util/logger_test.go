package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Swaps the package logger and debug flag, so it must not run in parallel.
func TestLoggerLevels(t *testing.T) {
	savedLogger, savedDebug := Logger, IsDebug
	t.Cleanup(func() { Logger, IsDebug = savedLogger, savedDebug })

	Logger = nil
	assert.NotPanics(t, func() { Warn("dropped") })

	var buf bytes.Buffer
	IsDebug = false
	InitLoggerWithWriter(&buf)
	Debug("hidden detail")
	Warn("server failed", "server", "A")
	Error("oracle down")

	out := buf.String()
	assert.NotContains(t, out, "hidden detail")
	assert.Contains(t, out, "server failed")
	assert.Contains(t, out, "oracle down")

	buf.Reset()
	IsDebug = true
	InitLoggerWithWriter(&buf)
	Debug("visible detail")
	assert.Contains(t, buf.String(), "visible detail")
}
