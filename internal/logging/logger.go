// Package logging builds the process-wide structured logger used across the
// document lifecycle engine. Every component takes a *zap.Logger explicitly
// rather than reaching for a package-level global, so tests can inject a
// zaptest/observer logger and assert on emitted fields.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style logger. debug raises the level to Debug and
// switches to console encoding, matching the teacher's CLI-verbose toggle.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}

// Noop returns a logger that discards everything, for tests and library
// callers that don't want engine logs mixed into their own output.
func Noop() *zap.Logger {
	return zap.NewNop()
}

// WithProject returns a child logger scoped to a project, the common case
// for every engine operation below the registry lookup.
func WithProject(l *zap.Logger, project string) *zap.Logger {
	return l.With(zap.String("project", project))
}

// WithDoc further scopes a project logger to a single registered document.
func WithDoc(l *zap.Logger, doc string) *zap.Logger {
	return l.With(zap.String("doc", doc))
}
