// Package logger provides the zerolog backed implementation of core/logger.
package logger

import (
	"strings"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/lastmile/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// New returns a Logger for the given component. The output format follows
// APP_ENV.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// SetLevel sets the global minimum level. Unknown names fall back to info.
func SetLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl
}
