package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

var logFile *os.File

func getLogFilePath() (string, error) {
	path, err := gap.NewScope(gap.User, "spin").DataPath("spin.log")
	if err != nil {
		return "", fmt.Errorf("unable to find data directory: %w", err)
	}
	return path, nil
}

// setupLog keeps warnings on stderr. With debug set, everything down to
// debug level goes to a log file in the user data directory instead.
func setupLog(debug bool) error {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	if !debug {
		return nil
	}

	path, err := getLogFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("unable to open log file: %w", err)
	}
	closeLog()
	logFile = f

	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.SetReportTimestamp(true)
	log.Debug("logging to file", "path", path)
	return nil
}

func closeLog() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
