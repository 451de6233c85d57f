// Package dateparse turns natural-language scheduling phrases ("tomorrow
// morning", "next Tuesday", "June 5th") into concrete times, best effort.
package dateparse
