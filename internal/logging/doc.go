// Package logging assembles the structured slog loggers shared by the
// imagewatch CLI and daemon.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers plus a no-op logger for tests and
// wiring code that cannot fail. Components tag their lines with a standard
// component attribute via NewComponentLogger.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
