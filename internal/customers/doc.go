// Package customers resolves caller contact fragments to deduplicated
// customer records.
//
// Matching precedence is strict: normalized phone, then lowercased email,
// then name similarity above the configured threshold, then creation. The
// store's unique (user_id, phone) index is the authoritative arbiter for
// concurrent creation; a losing insert is re-fetched and reported as a phone
// match, so duplicate webhook deliveries converge on a single customer.
package customers
