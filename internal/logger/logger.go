// Package logger provides leveled logging for ledgersync.
// When verbose mode is enabled via the --verbose flag, messages are printed
// to stderr. When a log file is configured every message is also appended
// to it, regardless of verbosity, with size-based rotation.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	maxSizeMB  = 20
	maxBackups = 5
	maxAgeDays = 28
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	file    io.WriteCloser
	now     = time.Now
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetFile directs a copy of every message to path, rotated by size.
// An empty path closes any open file.
func SetFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		if err := file.Close(); err != nil {
			return err
		}
		file = nil
	}
	if path == "" {
		return nil
	}

	file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return nil
}

// Close flushes and closes the log file, if any.
func Close() error {
	return SetFile("")
}

// Debug prints a debug message.
func Debug(format string, args ...any) {
	write("DEBUG", format, args...)
}

// Info prints an informational message.
func Info(format string, args ...any) {
	write("INFO", format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	write("WARN", format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	write("ERROR", format, args...)
}

// Section prints a section header.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
	if file != nil {
		fmt.Fprintf(file, "%s === %s ===\n", now().UTC().Format(time.RFC3339), name)
	}
}

func write(level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose && file == nil {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if verbose {
		fmt.Fprintf(output, "[%s] %s\n", level, msg)
	}
	if file != nil {
		fmt.Fprintf(file, "%s [%s] %s\n", now().UTC().Format(time.RFC3339), level, msg)
	}
}
