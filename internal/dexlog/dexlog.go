// Package dexlog is the repository-wide structured logging sink, backed by
// zerolog. Call sites build a message, emit it, and optionally turn it into
// an error they return themselves.
package dexlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	logger  = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	enabled = true
)

// SetOutput redirects the logger's writer, primarily for tests that want to
// capture what would otherwise go to stderr.
func SetOutput(w *os.File) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

// SetLevel adjusts verbosity, e.g. to keep incidental logging out of
// captured output.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(level)
}

// Disable silences all output until Enable is called, for callers that
// report skip counts themselves rather than one line per skipped class.
func Disable() {
	mu.Lock()
	enabled = false
	mu.Unlock()
}

// Enable re-enables output after a Disable call.
func Enable() {
	mu.Lock()
	enabled = true
	mu.Unlock()
}

func snapshot() (zerolog.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, enabled
}

// Debug emits a low-priority diagnostic. (Per-class skips during batch
// extraction are reported through Warn, not Debug.)
func Debug(msg string) {
	l, on := snapshot()
	if on {
		l.Debug().Msg(msg)
	}
}

// Warn emits a side-channel diagnostic that is not itself an error, e.g. an
// unsupported-but-tolerated DEX version, or an unresolved type descriptor.
func Warn(msg string) {
	l, on := snapshot()
	if on {
		l.Warn().Msg(msg)
	}
}

// Error logs a failure message. Callers typically still construct and
// return a Go error alongside this call; Error does not itself produce one.
func Error(msg string) {
	l, on := snapshot()
	if on {
		l.Error().Msg(msg)
	}
}
