package playtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/spotter/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "playtest_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the playtest tool.
func ShowHelp() {
	os.Stdout.WriteString(`Spotter Round Playtest Tool
===========================

A concurrent tool that plays simulated rounds against a running spotter
service and verifies the resulting ratings and leaderboard.

Usage:
  go run cmd/playtest/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -rounds int
        Number of rounds to play (default 200)
  -players int
        Size of the simulated player pool (default 40)
  -images int
        Size of the simulated image pool (default 12)
  -top int
        Number of top entries to fetch from leaderboard (default 25)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -miss-delay duration
        Gap between clicks, must exceed the service miss cooldown (default 300ms)
  -output string
        Output file for generated scripts (default: playtest_scripts_TIMESTAMP.json)
  -log string
        Log file for test output (default: playtest_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Play with default settings
  go run cmd/playtest/main.go

  # A longer run with a bigger player pool
  go run cmd/playtest/main.go -rounds 1000 -players 120 -workers 16

  # Verbose run against a non-default port
  go run cmd/playtest/main.go -verbose -url http://localhost:8080
`)
}
