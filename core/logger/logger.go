package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// ScopedLogger can derive a child logger carrying additional fields, e.g. the
// subcentral or grid zone a solve belongs to.
type ScopedLogger interface {
	Logger
	With(fields map[string]any) Logger
}

// With returns log scoped with fields when the implementation supports it and
// log unchanged otherwise. A nil log yields a Nop logger.
func With(log Logger, fields map[string]any) Logger {
	if log == nil {
		return Nop{}
	}
	if s, ok := log.(ScopedLogger); ok {
		return s.With(fields)
	}
	return log
}

// OrNop returns log or a Nop logger when log is nil.
func OrNop(log Logger) Logger {
	if log == nil {
		return Nop{}
	}
	return log
}

// Nop implements Logger with no-op methods.
type Nop struct{}

func (Nop) Debugf(string, ...any)         {}
func (Nop) Debugw(string, map[string]any) {}
func (Nop) Infof(string, ...any)          {}
func (Nop) Warnf(string, ...any)          {}
func (Nop) Errorf(string, ...any)         {}
