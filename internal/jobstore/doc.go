// Package jobstore persists delivery job state in SQLite and enforces the
// job lifecycle: admission is one active job per owner, status changes
// follow legal lifecycle edges, and cancellation is a cooperative flag
// observed by workers. The default in-memory database makes all state
// process-local.
package jobstore
