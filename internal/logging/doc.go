// Package logging assembles structured slog loggers and formatting helpers
// used across the extraction engine.
//
// It centralizes level and output plumbing and exposes context-aware helpers
// so pipeline code automatically tags log lines with job IDs, stages, and
// backend names. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
