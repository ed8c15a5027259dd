package drill

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/stomp/pkg/logger"
)

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return nil, err
	}
	if logFile == "" {
		return func() error { return nil }, logger.SetOutput(os.Stdout)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	if err := logger.SetOutput(io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, err
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file.Close, nil
}

// ShowHelp prints usage information for the drill tool.
func ShowHelp() {
	os.Stdout.WriteString(`Stomp Emergency Drill
=====================

Provisions athletes, coaches, referees and teammates against a running
service, connects every account to the alert websocket, streams wearable
readings (some of them cardiac anomalies) and verifies that every alert and
resolution reaches the athlete and all responders. Exits non-zero when any
delivery is missing.

Usage:
  go run ./cmd/drill [options]

Options:
  -url string          Base URL of the service (default "http://localhost:8000")
  -athletes int        Athlete accounts (default 10)
  -coaches int         Coach accounts (default 2)
  -referees int        Referee accounts (default 2)
  -teammates int       Teammate accounts (default 4)
  -readings int        Resting readings per athlete (default 5)
  -emergencies int     Athletes that go into crisis (default 3)
  -workers int         Concurrent HTTP workers (default CPU cores * 2)
  -timeout duration    HTTP request timeout (default 10s)
  -wait duration       How long to wait for websocket frames (default 5s)
  -output string       Write the JSON report to this file
  -log string          Also write logs to this file
  -verbose             Enable debug logging
  -help                Show this help message

Examples:
  # Drill a local service with defaults
  go run ./cmd/drill

  # Larger squad, more crises
  go run ./cmd/drill -athletes 200 -emergencies 20 -teammates 30 -output drill.json
`)
}
