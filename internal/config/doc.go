// Package config loads, defaults, normalizes, and validates the TOML
// configuration consumed by the daemon and CLI.
//
// Load resolves the config path (explicit flag, then
// ~/.config/calldesk/config.toml, then ./calldesk.toml), decodes over the
// defaults, expands all path fields, and validates the result. CreateSample
// writes the embedded annotated sample for `calldesk config init`.
package config
