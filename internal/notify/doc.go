// Package notify delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to an ntfy-compatible webhook using
// the URL configured in config.toml and gracefully degrades to a no-op when
// notifications are disabled. Per-event toggles let operators mute chatty
// categories without losing error alerts.
//
// Extend this package if you need alternative transports; all pipeline code
// depends only on the simple Service interface.
package notify
