// Package logger provides structured, level-gated logging for the guardian.
//
// Each entry is written as a single line with fixed-width columns:
//
//	2006-01-02 15:04:05.000 | MODULE       | ACTION                 | LEVEL | message
//
// Levels (lowest to highest): debug, info, warn, error.
// Entries below the configured minimum level are silently dropped.
// Lines are produced by a logrus.Logger with a column formatter, so the
// output sink and level gate are logrus' own.
//
// Usage:
//
//	log := logger.New("INTERCEPT", cfg.LogLevel)
//	log.Info("detect", "remote classifier reported PII")
//	log.Warnf("backend_call", "POST %s: %v", url, err)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level represents a log severity.
type Level int

// Log severity constants, ordered lowest to highest.
const (
	LevelDebug Level = iota // fine-grained diagnostic output
	LevelInfo               // normal operational messages
	LevelWarn               // unexpected but recoverable conditions
	LevelError              // failures requiring attention
)

const (
	fieldModule = "module"
	fieldAction = "action"
)

// Logger writes structured log lines for a single module.
type Logger struct {
	module string
	out    *logrus.Logger
}

// New creates a Logger for the given module, gated at the given level string.
// Unrecognized level strings default to "info".
func New(module, levelStr string) *Logger {
	out := logrus.New()
	out.SetOutput(os.Stderr)
	out.SetFormatter(columnFormatter{})
	out.SetLevel(toLogrus(parseLevel(levelStr)))
	return &Logger{
		module: strings.ToUpper(module),
		out:    out,
	}
}

// Discard returns a Logger that drops everything. Used in tests.
func Discard() *Logger {
	l := New("", "error")
	l.out.SetOutput(io.Discard)
	return l
}

// SetLevel changes the minimum log level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.out.SetLevel(toLogrus(parseLevel(levelStr)))
}

// SetOutput redirects log lines to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.SetOutput(w)
}

// With returns a Logger for another module sharing this one's sink and level.
func (l *Logger) With(module string) *Logger {
	return &Logger{module: strings.ToUpper(module), out: l.out}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(action, msg string) { l.write(logrus.DebugLevel, action, msg) }

// Info logs at INFO level.
func (l *Logger) Info(action, msg string) { l.write(logrus.InfoLevel, action, msg) }

// Warn logs at WARN level.
func (l *Logger) Warn(action, msg string) { l.write(logrus.WarnLevel, action, msg) }

// Error logs at ERROR level.
func (l *Logger) Error(action, msg string) { l.write(logrus.ErrorLevel, action, msg) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(action, format string, args ...any) {
	l.Debug(action, fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(action, format string, args ...any) {
	l.Info(action, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(action, format string, args ...any) {
	l.Warn(action, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(action, format string, args ...any) {
	l.Error(action, fmt.Sprintf(format, args...))
}

// Fatal logs at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatal(action, msg string) {
	l.Error(action, msg)
	os.Exit(1)
}

// Fatalf logs a formatted message at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatalf(action, format string, args ...any) {
	l.Fatal(action, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level logrus.Level, action, msg string) {
	if !l.out.IsLevelEnabled(level) {
		return
	}
	l.out.WithFields(logrus.Fields{fieldModule: l.module, fieldAction: action}).Log(level, msg)
}

// columnFormatter renders an entry in the fixed-column layout.
type columnFormatter struct{}

func (columnFormatter) Format(e *logrus.Entry) ([]byte, error) {
	module, _ := e.Data[fieldModule].(string)
	action, _ := e.Data[fieldAction].(string)
	ts := e.Time.Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("%s | %-12s | %-22s | %s | %s\n", ts, module, action, levelLabel(e.Level), e.Message)
	return []byte(line), nil
}

func levelLabel(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO "
	case logrus.WarnLevel:
		return "WARN "
	default:
		return "ERROR"
	}
}

func toLogrus(l Level) logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// parseLevel converts a string to a Level, defaulting to LevelInfo.
func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
