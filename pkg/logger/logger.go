// Package logger provides context-aware structured logging using logrus. A
// single global entry backs every command; packaging runs attach their own
// fields (run id, skill name) to a derived entry carried in the context.
package logger

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// G is a convenience alias for GetLogger.
	G = GetLogger
	// L is the global logger entry used when no logger is found in context.
	L = logrus.NewEntry(newLogger())
)

type (
	loggerKey struct{}
)

// WithLogger attaches a logger entry to the given context, making it retrievable via GetLogger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	e := logger.WithContext(ctx)
	return context.WithValue(ctx, loggerKey{}, e)
}

// WithFields derives a logger carrying fields from the one in ctx and stores it back.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(fields))
}

// GetLogger retrieves the logger entry from the context, falling back to L.
func GetLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(loggerKey{})

	if logger == nil {
		return L.WithContext(ctx)
	}

	return logger.(*logrus.Entry)
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	setLoggerFormat(l, "text")
	return l
}

func setLoggerFormat(logger *logrus.Logger, format string) {
	switch format {
	case "json":
		logger.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	default:
		logger.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}
	}
}

// Configure applies level, format ("text" or "json") and output to the global
// logger. An empty level or format leaves the current setting alone, and a nil
// output keeps stderr.
func Configure(level, format string, output io.Writer) error {
	if level != "" {
		logLevel, err := logrus.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", level)
		}
		L.Logger.SetLevel(logLevel)
	}
	if format != "" {
		if format != "text" && format != "json" {
			return errors.Errorf("invalid log format %q: expected text or json", format)
		}
		setLoggerFormat(L.Logger, format)
	}
	if output != nil {
		L.Logger.SetOutput(output)
	}
	return nil
}
