// Package services defines shared utilities consumed by the pipeline stage
// handlers and the core engines.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent call statuses (failed vs review).
//   - ValidationError, which accumulates every violated constraint so callers
//     see the full list rather than only the first failure.
//   - Context helpers that stamp call IDs, stage names, and correlation
//     identifiers for logging.
//
// Use these helpers when wiring new stage or engine logic so error handling
// and observability stay uniform across the pipeline.
package services
