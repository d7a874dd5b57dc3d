// Package wasmlog wraps go.uber.org/zap into an explicit logger handle.
// Nothing in this module reads a process-wide debug flag; a *Logger is
// constructed once by the CLI and threaded through the packages that
// want to log, mirroring wippyai-wasm-runtime's engine.Logger()/debugf
// pattern but without the package-level singleton.
package wasmlog

import "go.uber.org/zap"

// Logger is the handle passed into link.Registry, interp.Machine and
// script.Runner. The zero value is not usable; use New or Nop.
type Logger struct {
	z *zap.Logger
}

// New builds a development-style logger (human-readable, debug level
// included) when debug is true, and a no-op logger otherwise.
func New(debug bool) *Logger {
	if !debug {
		return &Logger{z: zap.NewNop()}
	}
	z, err := zap.NewDevelopment()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// Nop returns a logger that discards everything, for callers (tests,
// library embedders) that don't want a CLI-driven --debug flag.
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func (l *Logger) Debugf(format string, args ...any) { l.z.Sugar().Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.z.Sugar().Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Sugar().Warnf(format, args...) }

// With returns a child logger annotated with the given fields, e.g.
// wasmlog's caller wanting per-instance or per-run context.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Sync flushes any buffered log entries. Call it before process exit.
func (l *Logger) Sync() error { return l.z.Sync() }

func (l *Logger) Named(name string) *Logger { return &Logger{z: l.z.Named(name)} }
