// Package logging assembles structured slog loggers and formatting helpers
// used across ytcourier components.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and exposes context-aware helpers so pipeline code can
// automatically tag log lines with job IDs, owners, and phases. The package
// also provides a no-op logger for tests and wiring code that cannot fail,
// and a progress sampler that keeps byte-level progress from flooding logs.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
