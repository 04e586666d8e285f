// Package logger provides structured, leveled logging for entitystack.
//
// It wraps github.com/rs/zerolog behind a small call surface (Debug, Info,
// Warn, Error, Trace, SetLevel) so the rest of the module never imports
// zerolog directly. Subsystem-scoped trace logging lets a caller enable
// verbose output for one moving part (e.g. "hnsw" or "txn") without
// drowning everything else in noise.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's levels but keeps callers from needing to import
// zerolog just to call SetLevel.
type Level = zerolog.Level

const (
	TraceLevel = zerolog.TraceLevel
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02T15:04:05.000"}).
	With().Timestamp().Logger()

var (
	subsystemMu sync.RWMutex
	subsystems  = make(map[string]bool)
)

// SetLevel sets the minimum level that will be emitted globally.
func SetLevel(level Level) {
	base = base.Level(level)
}

// SetLevelName is a convenience wrapper for config-driven setup
// (ENTITYSTACK_LOG_LEVEL=debug, etc).
func SetLevelName(name string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return err
	}
	SetLevel(lvl)
	return nil
}

// EnableTrace turns on trace-level output for the named subsystems only.
func EnableTrace(names ...string) {
	subsystemMu.Lock()
	defer subsystemMu.Unlock()
	for _, n := range names {
		subsystems[n] = true
	}
}

// DisableTrace turns trace output back off for the named subsystems.
func DisableTrace(names ...string) {
	subsystemMu.Lock()
	defer subsystemMu.Unlock()
	for _, n := range names {
		delete(subsystems, n)
	}
}

func traceEnabled(subsystem string) bool {
	subsystemMu.RLock()
	defer subsystemMu.RUnlock()
	return subsystems[subsystem]
}

// For returns a logger scoped to a component name, attached as the
// "component" field on every emitted record.
func For(component string) *zerolog.Logger {
	l := base.With().Str("component", component).Logger()
	return &l
}

func Debug(format string, args ...interface{}) { base.Debug().Msgf(format, args...) }
func Info(format string, args ...interface{})  { base.Info().Msgf(format, args...) }
func Warn(format string, args ...interface{})  { base.Warn().Msgf(format, args...) }
func Error(format string, args ...interface{}) { base.Error().Msgf(format, args...) }

// Trace logs at trace level only when the given subsystem has been enabled
// via EnableTrace. This mirrors the teacher's subsystem-gated tracing
// without paying zerolog's formatting cost when disabled.
func Trace(subsystem, format string, args ...interface{}) {
	if !traceEnabled(subsystem) {
		return
	}
	base.Trace().Str("subsystem", subsystem).Msgf(format, args...)
}
