// Package namematch scores similarity between person or business names on a
// 0-100 scale for customer dedup.
//
// Scoring blends whole-string edit distance with a token-set comparison so
// reordered names ("Smith, John" vs "John Smith") still score high. Exact
// matches after case and whitespace normalization always score 100.
package namematch
