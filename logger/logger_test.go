package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Logging must work without InitLogger: CLI subcommands and tests call
// into the services before the web server ever starts.
func TestLoggingWorksWithoutInitLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug("debug entry")
		Infof("info entry %d", 1)
		Warning("warning entry")
		Error("error entry")
	})
}

func TestGetLogsFiltersByLevel(t *testing.T) {
	logBuffer = nil

	Debug("buffered debug")
	Info("buffered info")
	Error("buffered error")

	all := GetLogs(10, "DEBUG")
	assert.Len(t, all, 3)
	// Newest first
	assert.Contains(t, all[0], "buffered error")

	errorsOnly := GetLogs(10, "ERROR")
	assert.Len(t, errorsOnly, 1)
	assert.Contains(t, errorsOnly[0], "buffered error")
}
