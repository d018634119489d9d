// Package dcxcontext carries a leveled logger on a context.Context, the
// way the rest of this module expects to retrieve one.
package dcxcontext

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   = logrus.StandardLogger().WithField("component", "dcxsync")
	defaultLoggerMu sync.RWMutex
)

// Logger is the leveled-logging interface used throughout this module.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	WithError(err error) *logrus.Entry
}

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithValues attaches key/value fields to the context's logger without
// requiring the caller to build a logrus.Fields map by hand.
func WithValues(ctx context.Context, fields map[string]any) context.Context {
	lfields := make(logrus.Fields, len(fields))
	for k, v := range fields {
		lfields[k] = v
	}
	return WithLogger(ctx, getLogger(ctx).WithFields(lfields))
}

// GetLogger returns the logger carried on ctx, or the package default.
func GetLogger(ctx context.Context) Logger {
	if lg, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return lg
	}
	return getLogger(ctx)
}

// SetDefaultLogger replaces the logger used when no context logger is set.
func SetDefaultLogger(logger *logrus.Entry) {
	defaultLoggerMu.Lock()
	defaultLogger = logger
	defaultLoggerMu.Unlock()
}

func getLogger(ctx context.Context) *logrus.Entry {
	if v := ctx.Value(loggerKey{}); v != nil {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
		if lg, ok := v.(Logger); ok {
			// A non-entry Logger cannot take fields, so WithValues starts
			// a fresh standard-logger entry tagged with its type instead.
			if entry, ok := any(lg).(*logrus.Entry); ok {
				return entry
			}
			return logrus.NewEntry(logrus.StandardLogger()).WithField("wrapped", fmt.Sprintf("%T", lg))
		}
	}
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}
