// Package match provides the pure text-matching primitives the conversation
// engine is built on: case-insensitive keyword containment, comma-separated
// keyword lists, email/phone format checks, and a fuzzy word-overlap score
// used for FAQ retrieval. It is intentionally small and dependency-free:
//
//   - No logging (callers decide how/what to log)
//   - Stateless, deterministic functions safe for concurrent use
//   - Case folding applied consistently before comparison
package match

import (
	"regexp"
	"strings"
)

var (
	emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRE = regexp.MustCompile(`^[+]?[\d\s\-()]{10,}$`)
)

// ContainsKeyword reports whether keyword occurs in message, ignoring case.
// An empty keyword never matches.
func ContainsKeyword(message, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(message), strings.ToLower(keyword))
}

// MatchesAnyKeyword splits keywords on commas, trims each entry, and reports
// whether any of them occurs in message (case-insensitive substring).
func MatchesAnyKeyword(message, keywords string) bool {
	lower := strings.ToLower(message)
	for _, k := range strings.Split(keywords, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsValidEmail reports whether s looks like an email address. The check is
// format-level only (local@domain.tld); it does not verify deliverability.
func IsValidEmail(s string) bool {
	return emailRE.MatchString(strings.TrimSpace(s))
}

// IsValidPhone reports whether s looks like a phone number: an optional
// leading '+' followed by at least ten digits, spaces, dashes, or parens.
func IsValidPhone(s string) bool {
	return phoneRE.MatchString(strings.TrimSpace(s))
}

// WordOverlapScore measures how much of a is covered by b, in [0,1].
//
// Both strings are case-folded and tokenized on whitespace. A token of a
// counts as matched when it is a substring of some token of b or some token
// of b is a substring of it. The score is matched/len(tokens(a)), and 0 when
// a has no tokens. The asymmetry is deliberate: a is the reference text
// (e.g. a stored FAQ question) and b the incoming message.
func WordOverlapScore(a, b string) float64 {
	aTokens := strings.Fields(strings.ToLower(a))
	if len(aTokens) == 0 {
		return 0
	}
	bTokens := strings.Fields(strings.ToLower(b))

	matched := 0
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if strings.Contains(bt, at) || strings.Contains(at, bt) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(aTokens))
}
