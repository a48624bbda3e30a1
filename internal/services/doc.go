// Package services defines shared utilities consumed by the agent operations
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp operation IDs, workbook names, and history
//     run identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across the automation surface.
//
// Use these helpers when wiring new agent operations so operational behaviour
// (error handling, observability) stays uniform.
package services
