// Package phone canonicalizes phone numbers into a comparable E.164-style
// form so customer matching and dedup never compare raw user input.
//
// Normalization is deliberately lossy for numbers that arrive without a
// country prefix: ten-digit strings are assumed to be US/Canada and anything
// else falls back to a +1 prefix. Normalize never fails; malformed input
// still yields a best-effort +-prefixed string.
package phone
