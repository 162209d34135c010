// Package logging assembles structured slog loggers and formatting helpers used
// across SignScribe services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes component loggers plus warning helpers that always
// carry an event type, a hint and an impact. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
