package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// DebugLog is the process-wide debug logger. It discards everything unless
// InitDebugLog enabled it.
var DebugLog = zerolog.Nop()

func CheckDebug() bool {
	debug := os.Getenv("MYCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens <dataDir>/debug.log when MYCHAT_DEBUG is set and returns
// the logger writing to it. The terminal belongs to the UI, so nothing is
// written to stdout or stderr.
func InitDebugLog(dataDir string) zerolog.Logger {
	if !CheckDebug() {
		return DebugLog
	}

	logPath := filepath.Join(dataDir, "debug.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return DebugLog
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	DebugLog = zerolog.New(f).With().Timestamp().Caller().Logger().Level(zerolog.DebugLevel)
	DebugLog.Info().Str("path", logPath).Msgf("=== Debug logging started (MYCHAT_DEBUG=%s) ===", os.Getenv("MYCHAT_DEBUG"))
	return DebugLog
}
