// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

func init() {
	// Configure zerolog to work with github.com/pkg/errors:
	// - Automatically marshal pkg/errors stack traces when present
	// - Ensure a stack is present even for std errors when .Stack() is used
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		// If the error already carries a pkg/errors stack, keep it.
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); ok {
			return err
		}
		// Otherwise, attach a stack so downstream logging can render it.
		return pkgerrors.WithStack(err)
	}
}

// New returns a new zerolog.Logger writing to stdout.
// Call sites should use .Stack() on error events to include stacks.
func New(serviceName string) zerolog.Logger {
	return newWithWriter(serviceName, os.Stdout)
}

// NewRotating returns a zerolog.Logger writing to a rotated file at path,
// keeping rentionWeeks worth of history (lumberjack's MaxAge, in days).
// Files roll over by size (MaxSize); the original process rotated by day
// count (loguru's rotation="N day"), which lumberjack has no native
// equivalent for, so rotationDays is accepted but not used.
func NewRotating(serviceName, path string, rotationDays, rentionWeeks int) zerolog.Logger {
	w := &lumberjack.Logger{
		Filename: path,
		MaxAge:   7 * rentionWeeks,
		MaxSize:  100, // megabytes
		Compress: true,
	}
	return newWithWriter(serviceName, w)
}

func newWithWriter(serviceName string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
