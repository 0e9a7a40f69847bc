// Package services defines shared utilities consumed by the workflow
// pipeline and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, owner IDs, and pipeline phases for
//     logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification uniform from the extraction client all the way to the
//     message shown to the requester.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
