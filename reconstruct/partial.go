package reconstruct

import "strings"

// partialSuffix returns the length k of the longest suffix of s that equals
// the first k bytes of token, with k at most len(token)-1. Those k bytes may
// be the start of token split across fragments and must be withheld.
// Comparison is exact, byte for byte.
func partialSuffix(s, token string) int {
	k := len(token) - 1
	if k > len(s) {
		k = len(s)
	}
	for ; k > 0; k-- {
		if s[len(s)-k:] == token[:k] {
			return k
		}
	}
	return 0
}

// indexAny returns the earliest occurrence in s of any non-empty token, and
// which token matched. It returns -1 when none occurs.
func indexAny(s string, tokens ...string) (int, string) {
	best, match := -1, ""
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if i := strings.Index(s, t); i >= 0 && (best < 0 || i < best) {
			best, match = i, t
		}
	}
	return best, match
}

// splitPending splits s into the part safe to release and the longest tail
// that could begin any of tokens.
func splitPending(s string, tokens ...string) (release, keep string) {
	k := 0
	for _, t := range tokens {
		if n := partialSuffix(s, t); n > k {
			k = n
		}
	}
	return s[:len(s)-k], s[len(s)-k:]
}
