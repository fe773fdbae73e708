// Package logger provides context-scoped structured logging on top of logrus.
// Pipeline stages attach their fields (stage, attempt, domain) to the entry
// stored in the context so nested calls log with the same fields.
package logger

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// G retrieves the logger entry from a context.
	G = GetLogger
	// L is the process-wide fallback entry.
	L = logrus.NewEntry(newLogger())
)

type loggerKey struct{}

// WithLogger stores an entry in the context.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry.WithContext(ctx))
}

// WithField returns a context whose logger carries the extra field.
func WithField(ctx context.Context, key string, value any) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithField(key, value))
}

// WithFields returns a context whose logger carries the extra fields.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(fields))
}

// GetLogger returns the entry stored in ctx, or L bound to ctx.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L.WithContext(ctx)
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	setFormat(l, "fmt")
	return l
}

func setFormat(l *logrus.Logger, format string) {
	switch format {
	case "json":
		l.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	default:
		l.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}
	}
}

// SetLogLevel sets the level of the global logger.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	L.Logger.SetLevel(lvl)
	return nil
}

// SetLogFormat switches the global logger between "fmt" and "json".
func SetLogFormat(format string) {
	setFormat(L.Logger, format)
}

// SetLogOutput redirects the global logger.
func SetLogOutput(w io.Writer) {
	L.Logger.SetOutput(w)
}
