package namematch

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a 0-100 score for how alike two names are.
// The function is symmetric and reflexive: Similarity(a, a) == 100 for any
// non-empty a, and argument order never changes the result.
func Similarity(a, b string) float64 {
	na := normalize(a)
	nb := normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}

	whole := ratio(na, nb)
	tokens := ratio(tokenKey(na), tokenKey(nb))
	if tokens > whole {
		return tokens
	}
	return whole
}

// ratio converts edit distance into a 0-100 similarity score.
func ratio(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := (1 - float64(dist)/float64(longest)) * 100
	if score < 0 {
		return 0
	}
	return score
}

// tokenKey produces an order-insensitive form: lowercase tokens, sorted,
// joined by single spaces.
func tokenKey(normalized string) string {
	tokens := strings.Fields(normalized)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func normalize(name string) string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	// Separators become spaces ("Last, First"); apostrophes and quotes are
	// deleted outright so "O'Brien" and "OBrien" compare equal.
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ',', '.':
			return ' '
		case '\'', '"':
			return -1
		}
		return r
	}, cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}
