package logger

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	corelogger "github.com/power2u/flexheat/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

var console atomic.Bool

// New returns a Logger for the given component. The output format follows
// Configure, or the APP_ENV variable when Configure was never called.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// Configure sets the global level and the output format ("json" or
// "console") of loggers created afterwards.
func Configure(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	switch format {
	case "console":
		console.Store(true)
	case "json", "":
		console.Store(false)
	default:
		return fmt.Errorf("logger: unknown format %q", format)
	}
	return nil
}
