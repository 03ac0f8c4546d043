// Package tlog is the protocol's diagnostic logger: the core logs only at
// Debug (head-encode aborts, stream close, parse end or interruption) since
// OnStreamError is the user-facing fault channel. Grounded on
// schmitthub-clawker's claucker/pkg/logger.
package tlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the package-global logger instance.
var Log zerolog.Logger

func init() {
	Init(false)
}

// Init (re)configures the global logger.
func Init(debug bool) {
	var output io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    false,
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Debug logs a debug message.
func Debug() *zerolog.Event { return Log.Debug() }

// Info logs an info message.
func Info() *zerolog.Event { return Log.Info() }

// Warn logs a warning message.
func Warn() *zerolog.Event { return Log.Warn() }

// Error logs an error message.
func Error() *zerolog.Event { return Log.Error() }
