// Package logger provides leveled, printf-style logging for the CLI.
//
// Output goes to stderr through a log/slog text handler so that stdout stays
// clean for command results. Debug messages are dropped unless verbose mode
// is enabled with SetVerbose.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu    sync.RWMutex
	level = new(slog.LevelVar)
	log   = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	level.Set(slog.LevelInfo)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	if v {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// Verbose reports whether debug output is enabled.
func Verbose() bool {
	return level.Level() <= slog.LevelDebug
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Logger returns the underlying structured logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs a message only shown in verbose mode.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn logs a recoverable problem.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error logs a failure.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

func logf(l slog.Level, format string, args ...any) {
	lg := Logger()
	if !lg.Enabled(context.Background(), l) {
		return
	}
	lg.Log(context.Background(), l, fmt.Sprintf(format, args...))
}
