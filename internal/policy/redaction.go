// Package policy applies content rules to text before it leaves the turn:
// facts extracted from a conversation are redacted before they reach the
// long-term memory store, so personal identifiers never persist across
// sessions.
package policy

import "regexp"

type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Order matters: card numbers would otherwise match the phone pattern.
var redactionRules = []redactionRule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[REDACTED_IP]"},
}

// RedactPII masks common high-risk identifiers in a fact destined for
// storage. changed reports whether anything was masked.
func RedactPII(fact string) (redacted string, changed bool) {
	out := fact
	for _, rule := range redactionRules {
		next := rule.pattern.ReplaceAllString(out, rule.replacement)
		if next != out {
			changed = true
			out = next
		}
	}
	return out, changed
}
