package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger wraps a logrus logger to implement the Logger interface.
type LogrusLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// NewLogrusLogger creates a new LogrusLogger writing JSON to stdout.
func NewLogrusLogger(level string) *LogrusLogger {
	return NewLogrusLoggerWithOutput(level, os.Stdout)
}

// NewLogrusLoggerWithOutput creates a new LogrusLogger writing JSON to the
// given writer.
func NewLogrusLoggerWithOutput(level string, out io.Writer) *LogrusLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(out)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	l.SetLevel(logLevel)

	return &LogrusLogger{
		logger: l,
		entry:  logrus.NewEntry(l),
	}
}

func (l *LogrusLogger) log(level logrus.Level, msg string, fields map[string]interface{}) {
	entry := l.entry
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Log(level, msg)
}

// Debug logs a debug-level message.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(logrus.DebugLevel, msg, fields)
}

// Info logs an info-level message.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(logrus.InfoLevel, msg, fields)
}

// Warn logs a warning-level message.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(logrus.WarnLevel, msg, fields)
}

// Error logs an error-level message.
func (l *LogrusLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(logrus.ErrorLevel, msg, fields)
}

// WithField returns a new logger with the given field added.
func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithField(key, value),
	}
}

// WithFields returns a new logger with the given fields added.
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithFields(fields),
	}
}
