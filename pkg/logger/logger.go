// Package logger provides structured logging functionality based on zerolog.
//
// The supervisor forwards its own stdout byte-for-byte, so nothing in this
// package ever writes to os.Stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error, off
	Format string `json:"format" mapstructure:"format"` // auto, console, json
	File   string `json:"file" mapstructure:"file"`     // log file path, empty means stderr only

	// Output replaces stderr as the primary sink. Used by tests.
	Output io.Writer `json:"-" mapstructure:"-"`
}

var (
	globalLogger zerolog.Logger
	logFile      *os.File
	mu           sync.RWMutex
	initialized  bool
)

// parseLevel converts string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "off", "disabled", "none":
		return zerolog.Disabled
	default:
		return zerolog.ErrorLevel
	}
}

// useConsole reports whether the human readable writer should be used for out.
func useConsole(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Init initializes the global logger with the given configuration.
// When File is set, records go only to the file so the supervisor's
// stderr carries nothing but the child's stderr.
func Init(config LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	level := parseLevel(config.Level)

	var output io.Writer
	switch {
	case config.File != "":
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", config.File, err)
		}
		logFile = f
		output = f
		if strings.ToLower(config.Format) == "console" {
			output = zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: "2006-01-02T15:04:05-07:00"}
		}
	default:
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		output = out
		if useConsole(config.Format, out) {
			output = zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: "2006-01-02T15:04:05-07:00",
			}
		}
	}

	globalLogger = zerolog.New(output).Level(level).With().Timestamp().Logger()
	initialized = true
	return nil
}

func defaultLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}

// Get returns the global logger instance.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		l := defaultLogger()
		return &l
	}
	l := globalLogger
	return &l
}

// With creates a new logger with additional fields.
func With(fields map[string]any) *zerolog.Logger {
	mu.RLock()
	base := globalLogger
	if !initialized {
		base = defaultLogger()
	}
	mu.RUnlock()

	ctx := base.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// Close closes the log file if opened.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		initialized = false
		return err
	}
	return nil
}

// Debug returns a debug level event.
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info returns an info level event.
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn returns a warn level event.
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error returns an error level event.
func Error() *zerolog.Event {
	return Get().Error()
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...any) {
	Get().Debug().Msgf(format, args...)
}

// Infof logs a formatted info message.
func Infof(format string, args ...any) {
	Get().Info().Msgf(format, args...)
}

// Warnf logs a formatted warn message.
func Warnf(format string, args ...any) {
	Get().Warn().Msgf(format, args...)
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...any) {
	Get().Error().Msgf(format, args...)
}
