// Package logging constructs the slog loggers used by the daemon and CLI.
//
// Two formats are supported: a human-oriented console handler for interactive
// use and JSON for log shipping. NewFromConfig additionally tees output into
// a rotating file under the configured log directory. Attr helpers keep
// call/stage/customer attributes consistently named across the pipeline.
package logging
