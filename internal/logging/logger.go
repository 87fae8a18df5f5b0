// Package logging provides structured logging for the Bodyshop sync core.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger with the field-map call surface used
// throughout the sync core.
type Logger struct {
	l *logrus.Logger
}

var (
	global *Logger
	once   sync.Once
)

// Init initializes the global logger. Output is JSON with UTC
// timestamps so central and store logs interleave cleanly.
func Init(out io.Writer, level string) {
	once.Do(func() {
		global = New(out, level)
	})
}

// New creates a standalone logger. Tests use this to capture output
// without touching the global instance.
func New(out io.Writer, level string) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	l.SetLevel(lv)
	return &Logger{l: l}
}

// Get returns the global logger instance.
func Get() *Logger {
	if global == nil {
		Init(os.Stdout, "info")
	}
	return global
}

func (lg *Logger) entry(fields map[string]interface{}) *logrus.Entry {
	if len(fields) == 0 {
		return logrus.NewEntry(lg.l)
	}
	return lg.l.WithFields(logrus.Fields(fields))
}

// Debug logs a debug message.
func (lg *Logger) Debug(message string, fields map[string]interface{}) {
	lg.entry(fields).Debug(message)
}

// Info logs an info message.
func (lg *Logger) Info(message string, fields map[string]interface{}) {
	lg.entry(fields).Info(message)
}

// Warn logs a warning message.
func (lg *Logger) Warn(message string, fields map[string]interface{}) {
	lg.entry(fields).Warn(message)
}

// Error logs an error message with the wrapped cause.
func (lg *Logger) Error(message string, err error, fields map[string]interface{}) {
	e := lg.entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

// Convenience functions using the global logger.

func Debug(message string, fields map[string]interface{}) {
	Get().Debug(message, fields)
}

func Info(message string, fields map[string]interface{}) {
	Get().Info(message, fields)
}

func Warn(message string, fields map[string]interface{}) {
	Get().Warn(message, fields)
}

func Error(message string, err error, fields map[string]interface{}) {
	Get().Error(message, err, fields)
}
