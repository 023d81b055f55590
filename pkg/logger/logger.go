// Package logger provides the process-wide structured logger used across
// the bridge. It wraps log/slog behind a small singleton so that every
// package can log without threading a *slog.Logger through every
// constructor.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newDefault(false))
}

func newDefault(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Initialize (re)configures the singleton logger. verbose gates Debug-level
// output; it is driven by the "verbose-logging" configuration option.
func Initialize(verbose bool) {
	singleton.Store(newDefault(verbose))
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// NewLogr returns a logr.Logger backed by the current singleton, for
// components written against the logr interface rather than slog directly.
func NewLogr() logr.Logger {
	return funcr.New(func(prefix, args string) {
		l := Get()
		if prefix != "" {
			l.Info(prefix + ": " + args)
			return
		}
		l.Info(args)
	}, funcr.Options{})
}

func Debug(msg string)                  { Get().Debug(msg) }
func Debugf(format string, args ...any) { Get().Debug(sprintf(format, args...)) }
func Debugw(msg string, kv ...any)      { Get().Debug(msg, kv...) }
func Info(msg string)                   { Get().Info(msg) }
func Infof(format string, args ...any)  { Get().Info(sprintf(format, args...)) }
func Infow(msg string, kv ...any)       { Get().Info(msg, kv...) }
func Warn(msg string)                   { Get().Warn(msg) }
func Warnf(format string, args ...any)  { Get().Warn(sprintf(format, args...)) }
func Warnw(msg string, kv ...any)       { Get().Warn(msg, kv...) }
func Error(msg string)                  { Get().Error(msg) }
func Errorf(format string, args ...any) { Get().Error(sprintf(format, args...)) }
func Errorw(msg string, kv ...any)      { Get().Error(msg, kv...) }

// DPanic logs at error level; unlike Panic it does not unwind the stack.
func DPanic(msg string)               { Get().Error(msg) }
func DPanicf(format string, a ...any) { Get().Error(sprintf(format, a...)) }
func DPanicw(msg string, kv ...any)   { Get().Error(msg, kv...) }

// Panic logs then panics with the same message.
func Panic(msg string) {
	Get().Error(msg)
	panic(msg)
}

func Panicf(format string, args ...any) {
	msg := sprintf(format, args...)
	Get().Error(msg)
	panic(msg)
}

func Panicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// WithContext returns the singleton logger with the key/value pairs in kv
// attached, for call sites that want request-scoped fields without a full
// logr/slog context propagation layer. ctx is accepted but not read; no
// values are taken from it.
func WithContext(ctx context.Context, kv ...any) *slog.Logger {
	l := Get()
	if len(kv) > 0 {
		l = l.With(kv...)
	}
	_ = ctx
	return l
}
