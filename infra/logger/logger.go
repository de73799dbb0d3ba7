package logger

import corelogger "github.com/ridgeline-ems/ift-dispatch/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}
func (n NopLogger) With(string, any) Logger     { return n }

// New returns the zerolog backed Logger tagged with component. Output goes to
// stdout at the level set by SetLevel.
func New(component string) Logger {
	return NewZerologLogger(component)
}
