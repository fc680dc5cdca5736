// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
	"github.com/tonwallet/walletcore/wallet"
)

const maxLogRolls = 16

// defaultLogLevelMap quiets the chatty subsystems.
var defaultLogLevelMap = map[string]slog.Level{"BKND": slog.LevelInfo}

// logWriter implements an io.Writer that outputs to a rotating log file.
type logWriter struct {
	*rotator.Rotator
	stdout bool
}

// Write writes the data in p to the log file.
func (w logWriter) Write(p []byte) (n int, err error) {
	if w.stdout {
		os.Stdout.Write(p)
	}
	return w.Rotator.Write(p)
}

// InitLogging creates a LoggerMaker writing to a rotating logFile, with roll
// files in the same directory. The returned function closes the rotator.
func InitLogging(logFilename, lvl string, stdout bool, utc bool) (*wallet.LoggerMaker, func(), error) {
	if err := os.MkdirAll(filepath.Dir(logFilename), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logRotator, err := rotator.New(logFilename, 32*1024, false, maxLogRolls)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	if !stdout {
		fmt.Println("Logging to", logFilename)
	}
	lm, err := wallet.NewLoggerMaker(&logWriter{logRotator, stdout}, lvl, utc)
	if err != nil {
		logRotator.Close()
		return nil, nil, fmt.Errorf("failed to create custom logger: %w", err)
	}
	lm.SetLevelsFromMap(defaultLogLevelMap)
	return lm, func() { logRotator.Close() }, nil
}
