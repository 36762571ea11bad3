// Package services defines shared utilities consumed by the pipeline stages
// and the external service adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, shot indices, and frame
//     keys for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry the
//     stage and operation that produced them.
//   - Innermost, which unwinds wrapped and joined errors to the originating
//     cause for operator-facing messages.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
