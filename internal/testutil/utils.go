// Package testutil holds small helpers shared by the package test suites.
package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger for components that log while under test.
func TestLogger(t *testing.T) *log.Logger {
	t.Helper()

	logger := log.New(os.Stdout, "[campuschat-test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
